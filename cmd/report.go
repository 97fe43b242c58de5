package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var reportTicker string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the audit report for one company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx, "report")
		if err != nil {
			return err
		}
		defer e.Close()

		analysis, err := e.Pipeline.BuildCompanyAnalysis(ctx, reportTicker)
		if err != nil {
			return eris.Wrap(err, "build report")
		}
		if analysis == nil {
			return eris.Errorf("no company found for ticker %s", reportTicker)
		}

		return printJSON(analysis)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportTicker, "ticker", "", "company ticker (required)")
	_ = reportCmd.MarkFlagRequired("ticker")
	rootCmd.AddCommand(reportCmd)
}
