package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/signals"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// EventSource reads stored signal events
type EventSource interface {
	Events(ctx context.Context, f signals.EventFilter) ([]contracts.SignalEvent, error)
}

// LoadOptions bound a replay
type LoadOptions struct {
	From     time.Time
	To       time.Time
	Strategy string
	// Limit caps the number of entities replayed, <= 0 for all
	Limit int
}

// Loader gathers events and the close series they trade against
type Loader struct {
	db     database.DBTX
	events EventSource
}

// NewLoader creates a Loader
func NewLoader(db database.DBTX, events EventSource) *Loader {
	return &Loader{db: db, events: events}
}

const closesSQL = `
	SELECT symbol_id, date, COALESCE(adjusted_close, close)
	FROM source.time_series_daily_adjusted
	WHERE symbol_id = ANY($1)
	  AND report_type = 'daily'
	  AND close IS NOT NULL
	  AND ($2::date IS NULL OR date >= $2)
	  AND ($3::date IS NULL OR date <= $3)
	ORDER BY symbol_id, date`

// Load returns the events inside the window and, for every entity they
// mention, the ascending closes inside the same window.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) ([]contracts.SignalEvent, Prices, error) {
	events, err := l.events.Events(ctx, signals.EventFilter{
		Strategy: opts.Strategy,
		From:     opts.From,
		To:       opts.To,
	})
	if err != nil {
		return nil, nil, err
	}
	events = limitEntities(events, opts.Limit)
	if len(events) == 0 {
		return events, Prices{}, nil
	}

	ids := entityIDs(events)
	rows, err := l.db.Query(ctx, closesSQL, ids, nullDate(opts.From), nullDate(opts.To))
	if err != nil {
		return nil, nil, fmt.Errorf("query closes: %w", err)
	}

	type closeRow struct {
		symbolID int64
		point    PricePoint
	}
	closes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (closeRow, error) {
		var c closeRow
		var price float64
		err := row.Scan(&c.symbolID, &c.point.Date, &price)
		c.point.Close = decimal.NewFromFloat(price)
		return c, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan closes: %w", err)
	}

	prices := make(Prices, len(ids))
	for _, c := range closes {
		prices[c.symbolID] = append(prices[c.symbolID], c.point)
	}
	return events, prices, nil
}

// limitEntities keeps the events of the first n entities in id order.
// Events arrive ordered by entity.
func limitEntities(events []contracts.SignalEvent, n int) []contracts.SignalEvent {
	if n <= 0 {
		return events
	}
	seen := 0
	var last int64
	for i, e := range events {
		if i == 0 || e.SymbolID != last {
			seen++
			last = e.SymbolID
			if seen > n {
				return events[:i]
			}
		}
	}
	return events
}

func entityIDs(events []contracts.SignalEvent) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, e := range events {
		if !seen[e.SymbolID] {
			seen[e.SymbolID] = true
			ids = append(ids, e.SymbolID)
		}
	}
	return ids
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
