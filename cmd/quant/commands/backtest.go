package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/backtest"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay stored signal events against daily closes",
	Long: `Replays transformed.signal_events per strategy and entity with one open
position at a time, a cooldown after each exit, and reports per-strategy
trade metrics (win rate, total and average return, max drawdown, Sharpe,
profit factor).

Example:
  go run ./cmd/quant backtest --from 2020-01-01 --to 2024-12-31
  go run ./cmd/quant backtest --strategy rsi_reversal --cooldown-days 30 --json`,
	RunE: runBacktest,
}

var (
	btFrom         string
	btTo           string
	btStrategy     string
	btCooldownDays int
	btPositionSize float64
	btCommission   float64
	btLimit        int
	btJSON         bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first signal date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last signal date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "", "single strategy (default all)")
	backtestCmd.Flags().IntVar(&btCooldownDays, "cooldown-days", -1, "days after an exit before a new entry (default from pipeline config)")
	backtestCmd.Flags().Float64Var(&btPositionSize, "position-size", 0, "notional per trade (default from pipeline config)")
	backtestCmd.Flags().Float64Var(&btCommission, "commission", -1, "commission rate on entry and exit notional (default from pipeline config)")
	backtestCmd.Flags().IntVar(&btLimit, "limit", 0, "max entities replayed (0 = all)")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print the full result as JSON")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	from, err := parseDateFlag("from", btFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", btTo)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := backtest.ConfigFrom(a.pipeline.Backtest)
	if btCooldownDays >= 0 {
		cfg.CooldownDays = btCooldownDays
	}
	if btPositionSize > 0 {
		cfg.PositionSize = decimal.NewFromFloat(btPositionSize)
	}
	if btCommission >= 0 {
		cfg.CommissionRate = decimal.NewFromFloat(btCommission)
	}

	ctx, cancel := signalContext()
	defer cancel()

	events, prices, err := a.backtestLoader().Load(ctx, backtest.LoadOptions{
		From:     from,
		To:       to,
		Strategy: btStrategy,
		Limit:    btLimit,
	})
	if err != nil {
		return fmt.Errorf("load backtest inputs: %w", err)
	}

	result := backtest.NewEngine(cfg, a.log).Run(events, prices)

	if btJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	PrintHeader("Backtest",
		"Signals", fmt.Sprint(result.Signals),
		"Cooldown", fmt.Sprintf("%d days", cfg.CooldownDays),
		"Position", cfg.PositionSize.StringFixed(2))

	if result.Empty() {
		PrintWarning("No trades: no buy signal had a close on or after its date")
		return nil
	}

	widths := []int{20, 7, 8, 12, 10, 12, 8, 8}
	PrintTableHeader([]string{"STRATEGY", "TRADES", "WIN%", "TOTAL P&L", "AVG RET%", "MAX DD", "SHARPE", "PF"}, widths)
	for _, m := range result.Strategies {
		pf := "∞"
		if m.ProfitFactor != nil {
			pf = fmt.Sprintf("%.2f", *m.ProfitFactor)
		}
		PrintTableRow([]string{
			m.Strategy,
			fmt.Sprint(m.Trades),
			fmt.Sprintf("%.1f", m.WinRate*100),
			m.TotalPnL.StringFixed(2),
			fmt.Sprintf("%.2f", m.AvgReturnPct),
			m.MaxDrawdown.StringFixed(2),
			fmt.Sprintf("%.2f", m.Sharpe),
			pf,
		}, widths)
	}
	return nil
}
