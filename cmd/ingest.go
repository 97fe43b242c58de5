package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	ingestTickers  []string
	ingestQuarters []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch company profiles, transcripts, and financial statements",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx, "ingest")
		if err != nil {
			return err
		}
		defer e.Close()

		quarters, err := targetQuarters(ingestQuarters)
		if err != nil {
			return err
		}

		summary, err := e.Pipeline.Ingest(ctx, ingestTickers, quarters)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		return printJSON(summary)
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTickers, "tickers", nil, "tickers to ingest (default from config)")
	ingestCmd.Flags().StringSliceVar(&ingestQuarters, "quarters", nil, `quarters to ingest, e.g. "Q3 2025" (default: last four)`)
	rootCmd.AddCommand(ingestCmd)
}
