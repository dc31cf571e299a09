package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/insiderlens/internal/models"
)

var (
	showJSON  bool
	listLimit int
)

var showCmd = &cobra.Command{
	Use:   "show [TICKER]",
	Short: "Show an analysis, or list recent analyses without a ticker",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		analyses := application.StorageManager.AnalysisStorage()
		if len(args) == 0 {
			list, err := analyses.ListAnalyses(cmd.Context(), listLimit)
			if err != nil {
				return err
			}
			return printAnalysisList(list)
		}

		analysis, err := analyses.GetAnalysis(cmd.Context(), models.NormalizeTicker(args[0]))
		if err != nil {
			return err
		}
		if showJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		}
		printAnalysis(analysis)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the full record as JSON")
	showCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum analyses to list")
}

func printAnalysisList(list []*models.StockAnalysis) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tSTATUS\tTYPE\tSCORE\tINTEGRATED\tANALYZED")
	for _, a := range list {
		score, integrated, analyzed := "-", "-", "-"
		if a.Scorecard != nil {
			score = fmt.Sprintf("%d", a.Scorecard.GlobalScore)
		}
		if a.IntegratedScore != nil {
			integrated = fmt.Sprintf("%d", *a.IntegratedScore)
		}
		if a.AnalyzedAt != nil {
			analyzed = a.AnalyzedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.Ticker, a.Status, a.OpportunityType, score, integrated, analyzed)
	}
	return w.Flush()
}

func printAnalysis(a *models.StockAnalysis) {
	fmt.Printf("%s  %s  [%s]\n", a.Ticker, a.CompanyName, a.Status)
	if a.ErrorMessage != "" {
		fmt.Printf("error: %s\n", a.ErrorMessage)
	}
	if a.IntegratedScore != nil {
		fmt.Printf("integrated score: %d (macro factor %.2f)\n", *a.IntegratedScore, a.MacroFactor)
	}
	if a.CurrentPrice > 0 {
		fmt.Printf("price: %.2f  insider price: %.2f\n", a.CurrentPrice, a.InsiderPrice)
	}
	if a.OverallRating != "" {
		fmt.Printf("rating: %s  %s\n", a.OverallRating, a.Recommendation)
	}

	if card := a.Scorecard; card != nil {
		fmt.Printf("\n%s scorecard  %d/%d  confidence %s\n", card.OpportunityType, card.GlobalScore, card.MaxGlobalScore, card.Confidence)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, s := range card.Sections {
			fmt.Fprintf(w, "  %s\t%d/%d\tweight %d\tmissing %d\n", s.Label, s.Score, s.MaxScore, s.Weight, len(s.MissingMetrics))
		}
		w.Flush()
		if card.Summary != "" {
			fmt.Printf("\n%s\n", card.Summary)
		}
	}
	if a.Summary != "" && (a.Scorecard == nil || a.Summary != a.Scorecard.Summary) {
		fmt.Printf("\n%s\n", a.Summary)
	}
}
