package features

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// Repository reads bars and writes feature rows
type Repository struct {
	db database.TxBeginner
}

// NewRepository creates a new Repository instance
func NewRepository(db database.TxBeginner) *Repository {
	return &Repository{db: db}
}

const latestBarsSQL = `
	SELECT date, COALESCE(open, close), COALESCE(high, close), COALESCE(low, close),
	       close, COALESCE(adjusted_close, close), COALESCE(volume, 0)
	FROM source.time_series_daily_adjusted
	WHERE symbol_id = $1 AND report_type = 'daily' AND close IS NOT NULL
	ORDER BY date DESC
	LIMIT $2`

// LatestBars returns up to n most recent bars in ascending date order
func (r *Repository) LatestBars(ctx context.Context, symbolID int64, n int) ([]contracts.PriceBar, error) {
	rows, err := r.db.Query(ctx, latestBarsSQL, symbolID, n)
	if err != nil {
		return nil, fmt.Errorf("query bars %d: %w", symbolID, err)
	}

	bars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.PriceBar, error) {
		var b contracts.PriceBar
		var volume int64
		err := row.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjustedClose, &volume)
		b.Volume = float64(volume)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan bars %d: %w", symbolID, err)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

var featureColumns = []string{"symbol_id", "date", "feature_version", "close", "features", "labels"}

// ReplaceWindow deletes the stored rows in the date range covered by rows
// and inserts rows, atomically.
func (r *Repository) ReplaceWindow(ctx context.Context, symbolID int64, rows []contracts.FeatureRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	from, to := rows[0].Date, rows[0].Date
	for _, row := range rows {
		if row.SymbolID != symbolID {
			return 0, fmt.Errorf("row for symbol %d in window of %d", row.SymbolID, symbolID)
		}
		if row.Date.Before(from) {
			from = row.Date
		}
		if row.Date.After(to) {
			to = row.Date
		}
	}

	var copied int64
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM transformed.technical_features
			WHERE symbol_id = $1 AND date BETWEEN $2 AND $3`, symbolID, from, to); err != nil {
			return fmt.Errorf("delete window %d: %w", symbolID, err)
		}

		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transformed", "technical_features"},
			featureColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				row := rows[i]
				return []any{row.SymbolID, row.Date, row.Version, row.Close, row.Features, row.Labels}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy features %d: %w", symbolID, err)
		}
		copied = n
		return nil
	})
	return copied, err
}

const latestRowsSQL = `
	SELECT symbol_id, date, feature_version, close, features, labels
	FROM transformed.technical_features
	WHERE symbol_id = $1
	ORDER BY date DESC
	LIMIT $2`

// LatestRows returns up to n most recent feature rows in ascending order
func (r *Repository) LatestRows(ctx context.Context, symbolID int64, n int) ([]contracts.FeatureRow, error) {
	rows, err := r.db.Query(ctx, latestRowsSQL, symbolID, n)
	if err != nil {
		return nil, fmt.Errorf("query features %d: %w", symbolID, err)
	}

	out, err := pgx.CollectRows(rows, scanFeatureRow)
	if err != nil {
		return nil, fmt.Errorf("scan features %d: %w", symbolID, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanFeatureRow(row pgx.CollectableRow) (contracts.FeatureRow, error) {
	var f contracts.FeatureRow
	err := row.Scan(&f.SymbolID, &f.Date, &f.Version, &f.Close, &f.Features, &f.Labels)
	return f, err
}
