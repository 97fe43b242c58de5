package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract quantitative claims from unprocessed transcripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx, "extract")
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Pipeline.Extract(ctx)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		return printJSON(summary)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
