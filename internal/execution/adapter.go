// Package execution turns ranked recommendations into broker orders under
// position-count and position-size limits.
package execution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// Skip reasons
const (
	SkipMarketClosed = "market closed"
	SkipAlreadyHeld  = "already held"
	SkipMaxPositions = "max positions reached"
	SkipZeroQuantity = "position size below one share"
	SkipNoPrice      = "no price"
	SkipOrderFailed  = "order failed"
)

// PlannedOrder is a buy the adapter decided on
type PlannedOrder struct {
	Symbol   string          `json:"symbol"`
	Strategy string          `json:"strategy"`
	Qty      decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
}

// Skipped records a recommendation that produced no order
type Skipped struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Report summarises one execution pass
type Report struct {
	DryRun    bool              `json:"dry_run"`
	Planned   []PlannedOrder    `json:"planned"`
	Submitted []contracts.Order `json:"submitted"`
	Skipped   []Skipped         `json:"skipped"`
}

// Adapter places buys for the top recommendations
type Adapter struct {
	broker Broker
	cfg    pipelineconfig.ExecutionConfig
	logger *logger.Logger
}

// NewAdapter creates a new execution adapter
func NewAdapter(broker Broker, cfg pipelineconfig.ExecutionConfig, log *logger.Logger) *Adapter {
	return &Adapter{broker: broker, cfg: cfg, logger: log.WithField("module", "execution")}
}

// Execute walks recs in rank order. A closed market skips everything.
// Symbols already held are skipped, no more than max_positions are held
// afterwards, and each buy is sized to max_position_pct of equity. In dry
// run the orders are planned and logged but never submitted.
func (a *Adapter) Execute(ctx context.Context, recs []contracts.Recommendation) (Report, error) {
	report := Report{DryRun: a.cfg.DryRun, Planned: []PlannedOrder{}, Submitted: []contracts.Order{}, Skipped: []Skipped{}}
	if len(recs) == 0 {
		return report, nil
	}

	open, err := a.broker.IsMarketOpen(ctx)
	if err != nil {
		return report, fmt.Errorf("market clock: %w", err)
	}
	if !open {
		for _, r := range recs {
			report.Skipped = append(report.Skipped, Skipped{Symbol: r.Symbol, Reason: SkipMarketClosed})
		}
		a.logger.WithField("recommendations", len(recs)).Info("Market closed, skipping execution")
		return report, nil
	}

	account, err := a.broker.GetAccount(ctx)
	if err != nil {
		return report, fmt.Errorf("account: %w", err)
	}
	positions, err := a.broker.GetPositions(ctx)
	if err != nil {
		return report, fmt.Errorf("positions: %w", err)
	}

	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		held[p.Symbol] = true
	}
	budget := account.Equity.Mul(decimal.NewFromFloat(a.cfg.MaxPositionPct))

	for _, rec := range recs {
		if held[rec.Symbol] {
			report.Skipped = append(report.Skipped, Skipped{rec.Symbol, SkipAlreadyHeld})
			continue
		}
		if len(held) >= a.cfg.MaxPositions {
			report.Skipped = append(report.Skipped, Skipped{rec.Symbol, SkipMaxPositions})
			continue
		}

		price, err := a.broker.GetLatestPrice(ctx, rec.Symbol)
		if err != nil || !price.IsPositive() {
			a.logger.WithError(err).WithField("symbol", rec.Symbol).Warn("No usable price")
			report.Skipped = append(report.Skipped, Skipped{rec.Symbol, SkipNoPrice})
			continue
		}

		qty := budget.Div(price).Floor()
		if !qty.IsPositive() {
			report.Skipped = append(report.Skipped, Skipped{rec.Symbol, SkipZeroQuantity})
			continue
		}

		plan := PlannedOrder{Symbol: rec.Symbol, Strategy: rec.Strategy, Qty: qty, Price: price}
		fields := map[string]interface{}{
			"symbol":   rec.Symbol,
			"strategy": rec.Strategy,
			"rank":     rec.Rank,
			"qty":      qty.String(),
			"price":    price.StringFixed(2),
		}

		if a.cfg.DryRun {
			a.logger.WithFields(fields).Info("Dry run: would buy")
			report.Planned = append(report.Planned, plan)
			held[rec.Symbol] = true
			continue
		}

		order, err := a.broker.PlaceMarketOrder(ctx, rec.Symbol, qty, contracts.OrderSideBuy)
		if err != nil {
			a.logger.WithError(err).WithFields(fields).Warn("Order failed")
			report.Skipped = append(report.Skipped, Skipped{rec.Symbol, SkipOrderFailed})
			continue
		}
		a.logger.WithFields(fields).WithField("order_id", order.ID).Info("Order submitted")
		report.Planned = append(report.Planned, plan)
		report.Submitted = append(report.Submitted, order)
		held[rec.Symbol] = true
	}

	a.logger.WithFields(map[string]interface{}{
		"planned":   len(report.Planned),
		"submitted": len(report.Submitted),
		"skipped":   len(report.Skipped),
		"dry_run":   a.cfg.DryRun,
	}).Info("Execution completed")
	return report, nil
}

// Liquidate closes the named positions, continuing past failures
func (a *Adapter) Liquidate(ctx context.Context, symbols []string) ([]contracts.Order, error) {
	var orders []contracts.Order
	var failed []string
	for _, s := range symbols {
		if a.cfg.DryRun {
			a.logger.WithField("symbol", s).Info("Dry run: would close position")
			continue
		}
		o, err := a.broker.ClosePosition(ctx, s)
		if err != nil {
			a.logger.WithError(err).WithField("symbol", s).Warn("Close failed")
			failed = append(failed, s)
			continue
		}
		orders = append(orders, o)
	}
	if len(failed) > 0 {
		return orders, fmt.Errorf("failed to close %v", failed)
	}
	return orders, nil
}
