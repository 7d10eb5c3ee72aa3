// Package backtest replays stored signal events into simulated trades and
// reports per-strategy performance.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// PricePoint is one close on one trading day
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// Prices maps an entity to its ascending close series
type Prices map[int64][]PricePoint

// Config holds the simulation rules
type Config struct {
	CooldownDays   int
	PositionSize   decimal.Decimal // notional per trade
	CommissionRate decimal.Decimal // charged on entry and exit notional
}

// ConfigFrom converts the pipeline settings
func ConfigFrom(cfg pipelineconfig.BacktestConfig) Config {
	return Config{
		CooldownDays:   cfg.CooldownDays,
		PositionSize:   decimal.NewFromFloat(cfg.PositionSize),
		CommissionRate: decimal.NewFromFloat(cfg.CommissionRate),
	}
}

// Result holds every simulated trade and the per-strategy metrics
type Result struct {
	Signals    int               `json:"signals"`
	Strategies []Metrics         `json:"strategies"`
	Trades     []contracts.Trade `json:"trades"`
}

// Empty reports whether the replay produced no trades
func (r Result) Empty() bool {
	return len(r.Trades) == 0
}

// Engine runs the single-position-per-entity simulation
// It is pure: callers load events and prices.
type Engine struct {
	cfg    Config
	logger *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(cfg Config, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, logger: log.WithField("module", "backtest")}
}

type position struct {
	entry PricePoint
	qty   decimal.Decimal
}

type replayKey struct {
	strategy string
	symbolID int64
}

// Run replays events against prices. Zero events yields an empty result,
// not an error.
func (e *Engine) Run(events []contracts.SignalEvent, prices Prices) Result {
	result := Result{Signals: len(events), Strategies: []Metrics{}, Trades: []contracts.Trade{}}
	if len(events) == 0 {
		e.logger.Info("No signals to replay")
		return result
	}

	grouped := make(map[replayKey][]contracts.SignalEvent)
	for _, ev := range events {
		k := replayKey{ev.Strategy, ev.SymbolID}
		grouped[k] = append(grouped[k], ev)
	}

	keys := make([]replayKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].strategy != keys[j].strategy {
			return keys[i].strategy < keys[j].strategy
		}
		return keys[i].symbolID < keys[j].symbolID
	})

	byStrategy := make(map[string][]contracts.Trade)
	var order []string
	for _, k := range keys {
		trades := e.replay(k, grouped[k], prices[k.symbolID])
		if _, seen := byStrategy[k.strategy]; !seen {
			order = append(order, k.strategy)
		}
		byStrategy[k.strategy] = append(byStrategy[k.strategy], trades...)
		result.Trades = append(result.Trades, trades...)
	}

	for _, name := range order {
		m := computeMetrics(name, byStrategy[name])
		result.Strategies = append(result.Strategies, m)

		e.logger.WithFields(map[string]interface{}{
			"strategy":     name,
			"trades":       m.Trades,
			"win_rate":     fmt.Sprintf("%.2f%%", m.WinRate*100),
			"total_pnl":    m.TotalPnL.StringFixed(2),
			"sharpe_ratio": fmt.Sprintf("%.2f", m.Sharpe),
			"max_drawdown": m.MaxDrawdown.StringFixed(2),
		}).Info("Backtest completed")
	}
	return result
}

// replay walks one entity's events for one strategy in date order
func (e *Engine) replay(k replayKey, events []contracts.SignalEvent, series []PricePoint) []contracts.Trade {
	if len(series) == 0 {
		return nil
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })

	var (
		open     *position
		lastExit *time.Time
		trades   []contracts.Trade
	)

	for _, ev := range events {
		switch {
		case ev.Buy:
			if open != nil {
				continue
			}
			if lastExit != nil && ev.Date.Before(lastExit.AddDate(0, 0, e.cfg.CooldownDays)) {
				continue
			}
			point, ok := priceOnOrAfter(series, ev.Date)
			if !ok || !point.Close.IsPositive() {
				continue
			}
			qty := e.cfg.PositionSize.Div(point.Close).Floor()
			if !qty.IsPositive() {
				continue
			}
			open = &position{entry: point, qty: qty}

		case ev.Sell:
			if open == nil {
				continue
			}
			point, ok := priceOnOrAfter(series, ev.Date)
			if !ok {
				point = series[len(series)-1]
			}
			trades = append(trades, e.close(k, open, point, contracts.ExitSellSignal))
			exit := point.Date
			lastExit = &exit
			open = nil
		}
	}

	if open != nil {
		trades = append(trades, e.close(k, open, series[len(series)-1], contracts.ExitEndOfData))
	}
	return trades
}

func (e *Engine) close(k replayKey, p *position, exit PricePoint, reason contracts.ExitReason) contracts.Trade {
	entryValue := p.entry.Close.Mul(p.qty)
	exitValue := exit.Close.Mul(p.qty)
	commission := entryValue.Add(exitValue).Mul(e.cfg.CommissionRate)
	pnl := exitValue.Sub(entryValue).Sub(commission)

	return contracts.Trade{
		Strategy:    k.strategy,
		SymbolID:    k.symbolID,
		EntryDate:   p.entry.Date,
		ExitDate:    exit.Date,
		EntryPrice:  p.entry.Close,
		ExitPrice:   exit.Close,
		Quantity:    p.qty,
		Commission:  commission,
		PnL:         pnl,
		PnLPct:      pnl.Div(entryValue).Mul(decimal.NewFromInt(100)),
		HoldingDays: int(exit.Date.Sub(p.entry.Date).Hours() / 24),
		ExitReason:  reason,
	}
}

// priceOnOrAfter returns the first close dated on or after d
func priceOnOrAfter(series []PricePoint, d time.Time) (PricePoint, bool) {
	i := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(d) })
	if i == len(series) {
		return PricePoint{}, false
	}
	return series[i], true
}
