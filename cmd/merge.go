package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Rebuild the global ledgers from the per-source files on disk",
	Long:  "Recomputes GLOBAL_standard_all.csv and GLOBAL_standard_new.csv as a deduplicated union of every per-source ledger, without collecting anything. Useful after a partially-failed run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledgers, err := initLedgers()
		if err != nil {
			return err
		}
		if err := ledgers.Merge(); err != nil {
			return eris.Wrap(err, "merge")
		}
		zap.L().Info("global ledgers rebuilt", zap.String("dir", ledgers.Dir()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
