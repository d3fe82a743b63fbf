package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cbdc-monitor",
	Short: "Central bank digital currency announcement monitor",
	Long:  "Polls central bank feeds and listing pages, deduplicates against CSV ledgers, arbitrates relevance through two independent LLM judges, and maintains global merged ledgers.",
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
