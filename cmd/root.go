package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "claim-auditor",
	Short: "Earnings-call claim verification pipeline",
	Long:  "Ingests earnings-call transcripts and financial statements, extracts quantitative claims made by management, verifies them against reported results, and mines cross-quarter patterns of misleading communication.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
