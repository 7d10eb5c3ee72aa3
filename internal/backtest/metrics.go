package backtest

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// annualization applies to per-trade return ratios
var annualization = math.Sqrt(252)

// Metrics aggregates one strategy's trades
type Metrics struct {
	Strategy       string          `json:"strategy"`
	Trades         int             `json:"trades"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	WinRate        float64         `json:"win_rate"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	TotalReturnPct float64         `json:"total_return_pct"`
	AvgReturnPct   float64         `json:"avg_return_pct"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	Sharpe         float64         `json:"sharpe"`
	// ProfitFactor is nil when there are no losing trades
	ProfitFactor *float64 `json:"profit_factor"`
}

func computeMetrics(strategy string, trades []contracts.Trade) Metrics {
	m := Metrics{Strategy: strategy, Trades: len(trades), TotalPnL: decimal.Zero, MaxDrawdown: decimal.Zero}
	if len(trades) == 0 {
		return m
	}

	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	returns := make([]float64, len(trades))

	for i, t := range trades {
		m.TotalPnL = m.TotalPnL.Add(t.PnL)
		switch {
		case t.PnL.IsPositive():
			m.Wins++
			grossProfit = grossProfit.Add(t.PnL)
		case t.PnL.IsNegative():
			m.Losses++
			grossLoss = grossLoss.Add(t.PnL.Neg())
		}
		returns[i] = t.PnLPct.InexactFloat64()
		m.TotalReturnPct += returns[i]
	}

	m.WinRate = float64(m.Wins) / float64(m.Trades)
	m.AvgReturnPct = m.TotalReturnPct / float64(m.Trades)
	m.MaxDrawdown = maxDrawdown(trades)

	if sd := stdDev(returns, m.AvgReturnPct); sd > 0 {
		m.Sharpe = m.AvgReturnPct / sd * annualization
	}

	if grossLoss.IsPositive() {
		pf := grossProfit.Div(grossLoss).InexactFloat64()
		m.ProfitFactor = &pf
	}
	return m
}

// stdDev is the sample standard deviation, zero below two observations
func stdDev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	variance := 0.0
	for _, x := range xs {
		diff := x - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// maxDrawdown is the largest peak-to-trough fall of cumulative P&L in
// exit order, starting from a zero peak.
func maxDrawdown(trades []contracts.Trade) decimal.Decimal {
	ordered := make([]contracts.Trade, len(trades))
	copy(ordered, trades)
	sortByExit(ordered)

	cumulative := decimal.Zero
	peak := decimal.Zero
	worst := decimal.Zero
	for _, t := range ordered {
		cumulative = cumulative.Add(t.PnL)
		if cumulative.GreaterThan(peak) {
			peak = cumulative
		}
		if dd := peak.Sub(cumulative); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst
}

func sortByExit(trades []contracts.Trade) {
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].ExitDate.Before(trades[j].ExitDate) })
}
