package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Evaluate strategies over feature rows and upsert signal events",
	Long: `Evaluates the configured strategies over each entity's latest feature rows
and upserts transformed.signal_events. Re-running over the same rows
changes nothing.

Example:
  go run ./cmd/quant signals --mode incremental
  go run ./cmd/quant signals --mode full --workers 4`,
	RunE: runSignals,
}

var signalFlags stageFlags

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalFlags.register(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := signalFlags.options(a.pipeline, contracts.GroupSignalEvents)
	if err != nil {
		return err
	}
	gen, err := a.signalGenerator()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Signal generation",
		"Mode", string(opts.Mode),
		"Strategies", strings.Join(a.pipeline.Signals.Strategies, ", "))

	summary, err := gen.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	PrintSummary(summary, 10)
	return nil
}
