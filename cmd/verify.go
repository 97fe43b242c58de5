package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify unchecked claims against financial data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx, "verify")
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Pipeline.Verify(ctx)
		if err != nil {
			return eris.Wrap(err, "verify")
		}

		return printJSON(summary)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
