package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// Repository reads current signals with lagged fundamentals and stores
// ranked recommendations.
type Repository struct {
	db database.TxBeginner
}

// NewRepository creates a new Repository instance
func NewRepository(db database.TxBeginner) *Repository {
	return &Repository{db: db}
}

const currentSignalsSQL = `
	SELECT e.symbol_id, e.date, e.strategy, e.buy, e.sell, e.strength, ls.symbol
	FROM transformed.signal_events e
	JOIN source.listing_status ls ON ls.symbol_id = e.symbol_id
	WHERE e.date = $1 AND e.buy AND ls.status = 'Active'
	ORDER BY ls.symbol, e.strategy`

// Filings become visible lagDays after the period they describe, so the
// cutoff is signal date minus lag.
const laggedOverviewSQL = `
	SELECT fields FROM source.company_overview
	WHERE symbol_id = $1 AND fiscal_date_ending <= $2
	ORDER BY fiscal_date_ending DESC
	LIMIT 1`

const laggedBalanceSheetSQL = `
	SELECT fields FROM source.balance_sheet
	WHERE symbol_id = $1 AND report_type = 'quarterly' AND fiscal_date_ending <= $2
	ORDER BY fiscal_date_ending DESC
	LIMIT 1`

// Candidates returns buy signals dated asOf for active entities, each
// joined with fundamentals published at least lagDays before the signal.
func (r *Repository) Candidates(ctx context.Context, asOf time.Time, lagDays int) ([]Candidate, error) {
	rows, err := r.db.Query(ctx, currentSignalsSQL, asOf)
	if err != nil {
		return nil, fmt.Errorf("query current signals: %w", err)
	}
	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Candidate, error) {
		var c Candidate
		e := &c.Event
		err := row.Scan(&e.SymbolID, &e.Date, &e.Strategy, &e.Buy, &e.Sell, &e.Strength, &c.Symbol)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan current signals: %w", err)
	}

	cache := make(map[int64]Fundamentals)
	for i := range candidates {
		id := candidates[i].Event.SymbolID
		f, ok := cache[id]
		if !ok {
			cutoff := candidates[i].Event.Date.AddDate(0, 0, -lagDays)
			f, err = r.fundamentals(ctx, id, cutoff)
			if err != nil {
				return nil, err
			}
			cache[id] = f
		}
		candidates[i].Fundamentals = f
	}
	return candidates, nil
}

func (r *Repository) fundamentals(ctx context.Context, symbolID int64, cutoff time.Time) (Fundamentals, error) {
	overview, err := r.latestFields(ctx, laggedOverviewSQL, symbolID, cutoff)
	if err != nil {
		return Fundamentals{}, fmt.Errorf("overview %d: %w", symbolID, err)
	}
	balance, err := r.latestFields(ctx, laggedBalanceSheetSQL, symbolID, cutoff)
	if err != nil {
		return Fundamentals{}, fmt.Errorf("balance sheet %d: %w", symbolID, err)
	}
	return fundamentalsFrom(overview, balance), nil
}

func (r *Repository) latestFields(ctx context.Context, query string, symbolID int64, cutoff time.Time) (map[string]any, error) {
	var fields map[string]any
	err := r.db.QueryRow(ctx, query, symbolID, cutoff).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return fields, err
}

var overviewFields = map[string]string{
	"ReturnOnEquityTTM":          FundROE,
	"ProfitMargin":               FundProfitMargin,
	"OperatingMarginTTM":         FundOperatingMargin,
	"PERatio":                    FundPERatio,
	"PriceToBookRatio":           FundPriceToBook,
	"QuarterlyEarningsGrowthYOY": FundEarningsGrowth,
	"QuarterlyRevenueGrowthYOY":  FundRevenueGrowth,
}

// fundamentalsFrom maps stored fact fields onto classifier scores. Either
// map may be nil.
func fundamentalsFrom(overview, balance map[string]any) Fundamentals {
	f := Fundamentals{Values: make(map[string]float64)}
	if s, ok := overview["Sector"].(string); ok {
		f.Sector = s
	}
	for field, name := range overviewFields {
		if v, ok := overview[field].(float64); ok {
			f.Values[name] = v
		}
	}

	liabilities, ok1 := balance["totalLiabilities"].(float64)
	equity, ok2 := balance["totalShareholderEquity"].(float64)
	if ok1 && ok2 {
		if d := features.SafeDivide(liabilities, equity); d != nil {
			f.Values[FundDebtRatio] = *d
		}
	}
	return f
}

const insertRecommendationSQL = `
	INSERT INTO transformed.recommendations
		(run_id, as_of, symbol_id, symbol, strategy, probability, strength, quality, composite, rank, model_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Save stores one scoring run atomically
func (r *Repository) Save(ctx context.Context, runID uuid.UUID, recs []contracts.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			batch.Queue(insertRecommendationSQL, runID, rec.AsOf, rec.SymbolID, rec.Symbol, rec.Strategy,
				rec.Probability, rec.Strength, rec.Quality, rec.Composite, rec.Rank, rec.ModelVersion)
		}
		br := tx.SendBatch(ctx, batch)
		for range recs {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert recommendation: %w", err)
			}
		}
		return br.Close()
	})
}

const latestRecommendationsSQL = `
	SELECT as_of, symbol_id, symbol, strategy, probability, strength, quality, composite, rank, model_version
	FROM transformed.recommendations
	WHERE run_id = (
		SELECT run_id FROM transformed.recommendations
		ORDER BY as_of DESC, created_at DESC
		LIMIT 1
	)
	ORDER BY rank`

// Latest returns the most recent scoring run in rank order
func (r *Repository) Latest(ctx context.Context) ([]contracts.Recommendation, error) {
	rows, err := r.db.Query(ctx, latestRecommendationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.Recommendation, error) {
		var rec contracts.Recommendation
		err := row.Scan(&rec.AsOf, &rec.SymbolID, &rec.Symbol, &rec.Strategy, &rec.Probability,
			&rec.Strength, &rec.Quality, &rec.Composite, &rec.Rank, &rec.ModelVersion)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recommendations: %w", err)
	}
	return recs, nil
}
