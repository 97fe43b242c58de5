package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/claim-auditor/internal/pipeline"
)

var (
	runTickers  []string
	runQuarters []string
	runSteps    []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full audit pipeline: ingest, extract, verify, analyze",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer e.Close()

		quarters, err := targetQuarters(runQuarters)
		if err != nil {
			return err
		}

		summary, err := e.Pipeline.Run(ctx, runTickers, quarters, runSteps)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		return printJSON(summary)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "tickers to audit (default from config)")
	runCmd.Flags().StringSliceVar(&runQuarters, "quarters", nil, `quarters to ingest, e.g. "Q3 2025" (default: last four)`)
	runCmd.Flags().StringSliceVar(&runSteps, "steps", pipeline.Steps, "pipeline steps to run")
	rootCmd.AddCommand(runCmd)
}
