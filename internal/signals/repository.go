package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// Repository persists signal events
type Repository struct {
	db database.TxBeginner
}

// NewRepository creates a new Repository instance
func NewRepository(db database.TxBeginner) *Repository {
	return &Repository{db: db}
}

const upsertEventSQL = `
	INSERT INTO transformed.signal_events (symbol_id, date, strategy, buy, sell, strength)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (symbol_id, date, strategy) DO UPDATE SET
		buy = EXCLUDED.buy,
		sell = EXCLUDED.sell,
		strength = EXCLUDED.strength,
		updated_at = NOW()
	WHERE (signal_events.buy, signal_events.sell, signal_events.strength)
		IS DISTINCT FROM (EXCLUDED.buy, EXCLUDED.sell, EXCLUDED.strength)`

// Upsert writes events keyed by (entity, date, strategy). Rewriting an
// identical event is a no-op; the returned count covers inserted or
// changed rows only.
func (r *Repository) Upsert(ctx context.Context, events []contracts.SignalEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	var total int64
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range events {
			batch.Queue(upsertEventSQL, e.SymbolID, e.Date, e.Strategy, e.Buy, e.Sell, e.Strength)
		}

		br := tx.SendBatch(ctx, batch)
		for range events {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("upsert signal event: %w", err)
			}
			total += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// EventFilter narrows an event query. Zero values mean no constraint.
type EventFilter struct {
	SymbolID int64
	Strategy string
	From     time.Time
	To       time.Time
	BuyOnly  bool
}

const eventsSQL = `
	SELECT symbol_id, date, strategy, buy, sell, strength
	FROM transformed.signal_events
	WHERE ($1::bigint = 0 OR symbol_id = $1)
	  AND ($2::text = '' OR strategy = $2)
	  AND ($3::date IS NULL OR date >= $3)
	  AND ($4::date IS NULL OR date <= $4)
	  AND (NOT $5::boolean OR buy)
	ORDER BY symbol_id, date, strategy`

// Events returns stored events ordered by entity, date and strategy
func (r *Repository) Events(ctx context.Context, f EventFilter) ([]contracts.SignalEvent, error) {
	rows, err := r.db.Query(ctx, eventsSQL, f.SymbolID, f.Strategy, nullDate(f.From), nullDate(f.To), f.BuyOnly)
	if err != nil {
		return nil, fmt.Errorf("query signal events: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.SignalEvent, error) {
		var e contracts.SignalEvent
		err := row.Scan(&e.SymbolID, &e.Date, &e.Strategy, &e.Buy, &e.Sell, &e.Strength)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan signal events: %w", err)
	}
	return out, nil
}

// LatestDate returns the most recent event date, or nil when there are none
func (r *Repository) LatestDate(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx, `SELECT MAX(date) FROM transformed.signal_events`).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest signal date: %w", err)
	}
	return latest, nil
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
