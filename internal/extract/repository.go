package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// factSQL is the fixed statement set of one fact table
type factSQL struct {
	hashes string
	upsert string
	args   func(runID uuid.UUID, r contracts.FactRecord) ([]any, error)
}

func fundamentalsSQL(table string) factSQL {
	return factSQL{
		hashes: `SELECT fiscal_date_ending, report_type, content_hash FROM ` + table + ` WHERE symbol_id = $1`,
		upsert: `
			INSERT INTO ` + table + ` AS t (
				symbol_id, fiscal_date_ending, report_type, fields, content_hash, source_run_id
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (symbol_id, fiscal_date_ending, report_type) DO UPDATE SET
				fields        = EXCLUDED.fields,
				content_hash  = EXCLUDED.content_hash,
				source_run_id = EXCLUDED.source_run_id,
				updated_at    = NOW()
			WHERE t.content_hash IS DISTINCT FROM EXCLUDED.content_hash`,
		args: func(runID uuid.UUID, r contracts.FactRecord) ([]any, error) {
			fields, err := json.Marshal(r.Fields)
			if err != nil {
				return nil, err
			}
			return []any{r.SymbolID, r.Period, r.ReportType, fields, r.ContentHash, runID}, nil
		},
	}
}

const dailyHashesSQL = `SELECT date, report_type, content_hash FROM source.time_series_daily_adjusted WHERE symbol_id = $1`

const dailyUpsertSQL = `
	INSERT INTO source.time_series_daily_adjusted AS t (
		symbol_id, date, report_type, open, high, low, close, adjusted_close,
		volume, dividend_amount, split_coefficient, content_hash, source_run_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (symbol_id, date, report_type) DO UPDATE SET
		open              = EXCLUDED.open,
		high              = EXCLUDED.high,
		low               = EXCLUDED.low,
		close             = EXCLUDED.close,
		adjusted_close    = EXCLUDED.adjusted_close,
		volume            = EXCLUDED.volume,
		dividend_amount   = EXCLUDED.dividend_amount,
		split_coefficient = EXCLUDED.split_coefficient,
		content_hash      = EXCLUDED.content_hash,
		source_run_id     = EXCLUDED.source_run_id,
		updated_at        = NOW()
	WHERE t.content_hash IS DISTINCT FROM EXCLUDED.content_hash`

func dailyArgs(runID uuid.UUID, r contracts.FactRecord) ([]any, error) {
	var volume *int64
	if v, ok := r.Fields["volume"].(float64); ok {
		n := int64(v)
		volume = &n
	}
	return []any{
		r.SymbolID, r.Period, r.ReportType,
		numeric(r.Fields["open"]),
		numeric(r.Fields["high"]),
		numeric(r.Fields["low"]),
		numeric(r.Fields["close"]),
		numeric(r.Fields["adjusted_close"]),
		volume,
		numeric(r.Fields["dividend_amount"]),
		numeric(r.Fields["split_coefficient"]),
		r.ContentHash, runID,
	}, nil
}

func numeric(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

// factTables maps every extraction group to constant SQL. Table names never
// come from input.
var factTables = map[contracts.DatasetGroup]factSQL{
	contracts.GroupBalanceSheet:    fundamentalsSQL("source.balance_sheet"),
	contracts.GroupIncomeStatement: fundamentalsSQL("source.income_statement"),
	contracts.GroupCashFlow:        fundamentalsSQL("source.cash_flow"),
	contracts.GroupEarnings:        fundamentalsSQL("source.earnings"),
	contracts.GroupCompanyOverview: fundamentalsSQL("source.company_overview"),
	contracts.GroupDailyPrices:     {hashes: dailyHashesSQL, upsert: dailyUpsertSQL, args: dailyArgs},
}

func tableFor(group contracts.DatasetGroup) (factSQL, error) {
	sql, ok := factTables[group]
	if !ok {
		return factSQL{}, fmt.Errorf("no fact table for group %q", group)
	}
	return sql, nil
}

// Repository persists landings and facts in Postgres
type Repository struct {
	db database.TxBeginner
}

// NewRepository creates a new Repository instance
func NewRepository(db database.TxBeginner) *Repository {
	return &Repository{db: db}
}

const insertLandingSQL = `
	INSERT INTO source.api_responses_landing (
		run_id, table_name, symbol_id, api_function, response_status,
		payload, response_hash, fetched_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// InsertLanding appends one raw landing row. Payloads that are not JSON
// are wrapped as a JSON string so nothing is lost.
func (r *Repository) InsertLanding(ctx context.Context, l contracts.RawLanding) error {
	var payload any
	switch {
	case len(l.Payload) == 0:
		payload = nil
	case json.Valid(l.Payload):
		payload = json.RawMessage(l.Payload)
	default:
		wrapped, err := json.Marshal(string(l.Payload))
		if err != nil {
			return fmt.Errorf("wrap landing payload: %w", err)
		}
		payload = json.RawMessage(wrapped)
	}

	_, err := r.db.Exec(ctx, insertLandingSQL,
		l.RunID, string(l.Group), l.SymbolID, l.APIFunction, string(l.Status),
		payload, l.ResponseHash, l.FetchedAt)
	if err != nil {
		return fmt.Errorf("insert landing %s/%d: %w", l.Group, l.SymbolID, err)
	}
	return nil
}

// StoredHashes loads the content hash of every stored fact of one entity
func (r *Repository) StoredHashes(ctx context.Context, group contracts.DatasetGroup, symbolID int64) (map[contracts.FactKey]string, error) {
	table, err := tableFor(group)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, table.hashes, symbolID)
	if err != nil {
		return nil, fmt.Errorf("query hashes %s/%d: %w", group, symbolID, err)
	}
	defer rows.Close()

	out := make(map[contracts.FactKey]string)
	for rows.Next() {
		var rec contracts.FactRecord
		var hash string
		if err := rows.Scan(&rec.Period, &rec.ReportType, &hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		out[rec.Key()] = hash
	}
	return out, rows.Err()
}

// UpsertFacts writes changed records in one batch inside one transaction
// and returns how many rows were written.
func (r *Repository) UpsertFacts(ctx context.Context, group contracts.DatasetGroup, runID uuid.UUID, records []contracts.FactRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	table, err := tableFor(group)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		args, err := table.args(runID, rec)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", group, rec.Key().Period, err)
		}
		batch.Queue(table.upsert, args...)
	}

	var written int64
	err = database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range records {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("upsert %s/%d: %w", group, records[0].SymbolID, err)
			}
			written += tag.RowsAffected()
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
