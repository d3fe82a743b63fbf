package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/ledger"
)

var (
	classifyInput  string
	classifyOutput string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Re-run relevance arbitration over an existing ledger CSV",
	Long:  "Reads records from a ledger-format CSV, sends each through both judges again, and writes the re-arbitrated records to the output file. Collection and dedup are not involved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledgers, err := initLedgers()
		if err != nil {
			return err
		}
		engine := initEngine(ctx, ledgers)

		recs, err := ledgers.ReadLedger(classifyInput)
		if err != nil {
			return eris.Wrapf(err, "read %s", classifyInput)
		}
		if len(recs) == 0 {
			zap.L().Warn("no records to classify", zap.String("input", classifyInput))
			return nil
		}

		batch, err := engine.ResolveBatch(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "arbitrate")
		}

		out := classifyOutput
		if out == "" {
			out = classifyInput
		}
		if err := ledger.WriteRecords(out, recs); err != nil {
			return eris.Wrapf(err, "write %s", out)
		}

		zap.L().Info("classification complete",
			zap.String("input", classifyInput),
			zap.String("output", out),
			zap.Int("records", batch.Resolved),
			zap.Int("relevant", batch.Relevant),
			zap.Int("prefiltered", batch.Prefiltered),
		)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyInput, "input", "", "ledger CSV to re-classify (required)")
	classifyCmd.Flags().StringVar(&classifyOutput, "output", "", "output path (default: overwrite input)")
	_ = classifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(classifyCmd)
}
