package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

var rubricPrompt bool

var rubricCmd = &cobra.Command{
	Use:   "rubric [FILE]",
	Short: "Print the active rubric, or validate a rubric file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Pipeline.RubricFile
		if len(args) == 1 {
			path = args[0]
		}

		rubric := scorecard.DefaultRubric()
		if path != "" {
			loaded, err := scorecard.LoadRubric(path)
			if err != nil {
				return err
			}
			rubric = loaded
		}

		if rubricPrompt {
			fmt.Println(scorecard.RubricPrompt(rubric))
			return nil
		}
		data, err := rubric.YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rubricCmd.Flags().BoolVar(&rubricPrompt, "prompt", false, "Print the condensed form given to the narrative model")
}
