package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Mine verified claims for cross-quarter discrepancy patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx, "analyze")
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Pipeline.Analyze(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		return printJSON(summary)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
