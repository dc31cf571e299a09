package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
)

var (
	enqueuePriority string
	enqueueForce    bool
	enqueueSource   string
	jobsStatus      string
	jobsLimit       int
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue TICKER [TICKER...]",
	Short: "Queue tickers for analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		queue := application.StorageManager.QueueStorage()
		priority := models.ParsePriority(enqueuePriority)
		var failed int
		for _, ticker := range args {
			job, err := queue.Enqueue(cmd.Context(), ticker, enqueueSource, priority, enqueueForce)
			switch {
			case errors.Is(err, interfaces.ErrActiveJobExists):
				fmt.Printf("%s: already queued (use --force to replace)\n", models.NormalizeTicker(ticker))
			case err != nil:
				failed++
				fmt.Printf("%s: %v\n", models.NormalizeTicker(ticker), err)
			default:
				fmt.Printf("%s: queued %s (%s)\n", job.Ticker, job.ID, job.Priority)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tickers could not be queued", failed, len(args))
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel TICKER",
	Short: "Cancel pending and processing jobs for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		count, err := application.StorageManager.QueueStorage().CancelTickerJobs(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: cancelled %d job(s)\n", models.NormalizeTicker(args[0]), count)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		stats, err := application.StorageManager.QueueStorage().GetQueueStats(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "pending\t%d\n", stats.Pending)
		fmt.Fprintf(w, "processing\t%d\n", stats.Processing)
		fmt.Fprintf(w, "completed\t%d\n", stats.Completed)
		fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
		fmt.Fprintf(w, "cancelled\t%d\n", stats.Cancelled)
		fmt.Fprintf(w, "total\t%d\n", stats.Total())
		return w.Flush()
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		jobs, err := application.StorageManager.QueueStorage().ListJobs(cmd.Context(), models.JobStatus(jobsStatus), jobsLimit)
		if err != nil {
			return err
		}
		return printJobs(jobs)
	},
}

func init() {
	enqueueCmd.Flags().StringVarP(&enqueuePriority, "priority", "p", string(models.PriorityNormal), "Job priority (high, normal, low)")
	enqueueCmd.Flags().BoolVarP(&enqueueForce, "force", "f", false, "Cancel active jobs for the ticker first")
	enqueueCmd.Flags().StringVar(&enqueueSource, "source", models.SourceManual, "Job source label")

	jobsCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "Filter by status")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Maximum jobs to list")
}

func printJobs(jobs []*models.AnalysisJob) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTICKER\tSTATUS\tPRIORITY\tRETRIES\tPHASE\tCREATED\tERROR")
	for _, j := range jobs {
		phase := j.Progress.Phase
		if j.Progress.Progress != "" {
			phase += " " + j.Progress.Progress
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			j.ID, j.Ticker, j.Status, j.Priority, j.RetryCount, j.MaxRetries,
			phase, j.CreatedAt.Local().Format(time.DateTime), truncate(j.LastError, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
