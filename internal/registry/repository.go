package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// ErrUnknownSymbol is returned when a symbol is not in the registry
var ErrUnknownSymbol = errors.New("unknown symbol")

// Repository persists the entity registry in source.listing_status.
// Rows are never deleted so history stays joinable after delisting.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new Repository instance
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// UpsertStats counts what one upsert changed
type UpsertStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Delisted  int `json:"delisted"`
	Unchanged int `json:"unchanged"`
}

// An unchanged row matches the WHERE guard and returns nothing.
// A delisting date once known is never cleared by a later report.
const upsertListingSQL = `
	INSERT INTO source.listing_status (
		symbol, name, exchange, asset_type, status, ipo_date, delisting_date
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (symbol) DO UPDATE SET
		name           = EXCLUDED.name,
		exchange       = EXCLUDED.exchange,
		asset_type     = EXCLUDED.asset_type,
		status         = EXCLUDED.status,
		ipo_date       = COALESCE(EXCLUDED.ipo_date, listing_status.ipo_date),
		delisting_date = COALESCE(EXCLUDED.delisting_date, listing_status.delisting_date),
		updated_at     = NOW()
	WHERE (listing_status.name, listing_status.exchange, listing_status.asset_type,
	       listing_status.status, listing_status.ipo_date, listing_status.delisting_date)
	      IS DISTINCT FROM
	      (EXCLUDED.name, EXCLUDED.exchange, EXCLUDED.asset_type,
	       EXCLUDED.status, COALESCE(EXCLUDED.ipo_date, listing_status.ipo_date),
	       COALESCE(EXCLUDED.delisting_date, listing_status.delisting_date))
	RETURNING (xmax = 0) AS inserted, status`

// Upsert writes listings in one batch
func (r *Repository) Upsert(ctx context.Context, listings []contracts.Listing) (UpsertStats, error) {
	var stats UpsertStats
	if len(listings) == 0 {
		return stats, nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(upsertListingSQL,
			l.Symbol, l.Name, l.Exchange, l.AssetType, string(l.Status), l.IPODate, l.DelistingDate)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, l := range listings {
		var inserted bool
		var status string
		err := results.QueryRow().Scan(&inserted, &status)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			stats.Unchanged++
		case err != nil:
			return stats, fmt.Errorf("upsert listing %s: %w", l.Symbol, err)
		case inserted:
			stats.Inserted++
		case status == string(contracts.ListingDelisted):
			stats.Delisted++
		default:
			stats.Updated++
		}
	}

	return stats, results.Close()
}

const entityColumns = `symbol_id, symbol, COALESCE(name, ''), COALESCE(exchange, ''),
	COALESCE(asset_type, ''), status, ipo_date, delisting_date`

func scanEntity(row pgx.CollectableRow) (contracts.Entity, error) {
	var e contracts.Entity
	var status string
	err := row.Scan(&e.SymbolID, &e.Symbol, &e.Name, &e.Exchange, &e.AssetType,
		&status, &e.IPODate, &e.DelistingDate)
	e.Status = contracts.ListingStatus(status)
	return e, err
}

// Entities returns registry entities ordered by symbol. activeOnly drops
// delisted symbols; limit <= 0 means all.
func (r *Repository) Entities(ctx context.Context, activeOnly bool, limit int) ([]contracts.Entity, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+entityColumns+`
		FROM source.listing_status
		WHERE NOT $1 OR status = 'Active'
		ORDER BY symbol
		LIMIT $2`, activeOnly, lim)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	entities, err := pgx.CollectRows(rows, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("scan entities: %w", err)
	}
	return entities, nil
}

// Lookup resolves a symbol to its entity
func (r *Repository) Lookup(ctx context.Context, symbol string) (contracts.Entity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entityColumns+`
		FROM source.listing_status
		WHERE symbol = $1`, symbol)
	if err != nil {
		return contracts.Entity{}, fmt.Errorf("lookup %s: %w", symbol, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEntity)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.Entity{}, fmt.Errorf("lookup %s: %w", symbol, ErrUnknownSymbol)
	}
	if err != nil {
		return contracts.Entity{}, fmt.Errorf("lookup %s: %w", symbol, err)
	}
	return e, nil
}

// Count returns the number of registry rows per status
func (r *Repository) Count(ctx context.Context) (map[contracts.ListingStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM source.listing_status GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	defer rows.Close()

	out := make(map[contracts.ListingStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		out[contracts.ListingStatus(status)] = n
	}
	return out, rows.Err()
}
