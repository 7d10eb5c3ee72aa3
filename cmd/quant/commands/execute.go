package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/execution"
	"github.com/kennydoit/fin-trade-craft/internal/external/alpaca"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Turn the latest recommendations into market orders",
	Long: `Reads the most recent scoring run and sizes one market order per symbol not
already held, up to --max-positions, at --max-position-pct of equity.
Nothing is submitted while the market is closed or with --dry-run.

Example:
  go run ./cmd/quant execute --dry-run
  go run ./cmd/quant execute --broker alpaca --max-positions 5
  go run ./cmd/quant execute --broker alpaca --liquidate AAPL,MSFT`,
	RunE: runExecute,
}

var (
	execDryRun         bool
	execMaxPositions   int
	execMaxPositionPct float64
	execBroker         string
	execMockEquity     float64
	execLiquidate      []string
)

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "plan orders without submitting (also on when execution.dry_run is set)")
	executeCmd.Flags().IntVar(&execMaxPositions, "max-positions", 0, "cap on held positions (default from pipeline config)")
	executeCmd.Flags().Float64Var(&execMaxPositionPct, "max-position-pct", 0, "fraction of equity per order (default from pipeline config)")
	executeCmd.Flags().StringVar(&execBroker, "broker", "mock", "mock|alpaca")
	executeCmd.Flags().Float64Var(&execMockEquity, "mock-equity", 100000, "starting equity of the mock broker")
	executeCmd.Flags().StringSliceVar(&execLiquidate, "liquidate", nil, "close these positions instead of executing recommendations")
}

func runExecute(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.pipeline.Execution
	cfg.DryRun = cfg.DryRun || execDryRun
	if execMaxPositions > 0 {
		cfg.MaxPositions = execMaxPositions
	}
	if execMaxPositionPct > 0 {
		cfg.MaxPositionPct = execMaxPositionPct
	}

	var broker execution.Broker
	switch strings.ToLower(execBroker) {
	case "mock":
		broker = execution.NewMockBroker(decimal.NewFromFloat(execMockEquity))
	case "alpaca":
		client := alpaca.NewClient(a.cfg.Broker, a.log)
		if a.redis.Enabled() {
			client = client.WithRateLimiter(redis.NewRateLimiter(a.redis, cachePrefix))
		}
		broker = client
	default:
		return fmt.Errorf("invalid --broker %q (mock|alpaca)", execBroker)
	}

	adapter := execution.NewAdapter(broker, cfg, a.log)

	ctx, cancel := signalContext()
	defer cancel()

	if len(execLiquidate) > 0 {
		orders, err := adapter.Liquidate(ctx, execLiquidate)
		for _, o := range orders {
			PrintKeyValue(o.Symbol, fmt.Sprintf("%s %s (%s)", o.Side, o.Qty, o.Status), 8)
		}
		return err
	}

	recs, err := a.scoringRepo().Latest(ctx)
	if err != nil {
		return err
	}

	PrintHeader("Execution",
		"Broker", execBroker,
		"Dry run", fmt.Sprint(cfg.DryRun),
		"Max pos", fmt.Sprint(cfg.MaxPositions),
		"Size", fmt.Sprintf("%.1f%% of equity", cfg.MaxPositionPct*100))

	if len(recs) == 0 {
		PrintWarning("No recommendations stored; run score first")
		return nil
	}

	report, err := adapter.Execute(ctx, recs)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	for _, p := range report.Planned {
		PrintKeyValue(p.Symbol, fmt.Sprintf("buy %s @ %s [%s]", p.Qty, p.Price.StringFixed(2), p.Strategy), 8)
	}
	for _, s := range report.Skipped {
		PrintKeyValue(s.Symbol, "skipped: "+s.Reason, 8)
	}
	PrintSuccess(fmt.Sprintf("%d planned, %d submitted, %d skipped",
		len(report.Planned), len(report.Submitted), len(report.Skipped)))
	return nil
}
