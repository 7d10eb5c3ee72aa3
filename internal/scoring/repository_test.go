package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database/dbtest"
)

func TestRepository_CandidatesRespectPublicationLag(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db.Pool)

	var id int64
	require.NoError(t, db.Pool.QueryRow(ctx,
		`INSERT INTO source.listing_status (symbol, status) VALUES ('IBM', 'Active') RETURNING symbol_id`).Scan(&id))

	insert := func(table string, period time.Time, reportType, fields string) {
		_, err := db.Pool.Exec(ctx, `INSERT INTO source.`+table+`
			(symbol_id, fiscal_date_ending, report_type, fields, content_hash, source_run_id)
			VALUES ($1, $2, $3, $4::jsonb, 'h', gen_random_uuid())`, id, period, reportType, fields)
		require.NoError(t, err)
	}
	// published in time for a 2024-06-14 signal with a 45 day lag
	insert("balance_sheet", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "quarterly",
		`{"totalLiabilities": 100, "totalShareholderEquity": 50}`)
	// too recent: would be look-ahead
	insert("balance_sheet", time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), "quarterly",
		`{"totalLiabilities": 900, "totalShareholderEquity": 50}`)
	insert("company_overview", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "overview",
		`{"Sector": "TECHNOLOGY", "ReturnOnEquityTTM": 0.3}`)

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transformed.signal_events (symbol_id, date, strategy, buy, sell, strength)
		VALUES ($1, $2, 'rsi_reversal', TRUE, FALSE, 0.7),
		       ($1, $2, 'macd_crossover', FALSE, TRUE, 0.4)`, id, asOf)
	require.NoError(t, err)

	candidates, err := repo.Candidates(ctx, asOf, 45)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "IBM", c.Symbol)
	assert.Equal(t, "rsi_reversal", c.Event.Strategy)
	assert.Equal(t, "TECHNOLOGY", c.Fundamentals.Sector)
	assert.Equal(t, 2.0, c.Fundamentals.Values[FundDebtRatio])
	assert.Equal(t, 0.3, c.Fundamentals.Values[FundROE])
}

func TestRepository_SaveAndLatest(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db.Pool)

	recs := []contracts.Recommendation{
		{AsOf: asOf, SymbolID: 1, Symbol: "AAPL", Strategy: "rsi_reversal", Probability: 0.7, Composite: 0.6, Rank: 1, ModelVersion: "v1"},
		{AsOf: asOf, SymbolID: 2, Symbol: "IBM", Strategy: "rsi_reversal", Probability: 0.4, Composite: 0.3, Rank: 2, ModelVersion: "v1"},
	}
	require.NoError(t, repo.Save(ctx, uuid.New(), recs))

	older := []contracts.Recommendation{{AsOf: asOf.AddDate(0, 0, -1), SymbolID: 3, Symbol: "OLD", Strategy: "s", Rank: 1, ModelVersion: "v1"}}
	require.NoError(t, repo.Save(ctx, uuid.New(), older))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "AAPL", latest[0].Symbol)
	assert.Equal(t, "IBM", latest[1].Symbol)
}
