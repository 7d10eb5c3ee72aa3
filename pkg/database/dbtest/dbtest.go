// Package dbtest opens the integration-test database.
// Tests using it are skipped unless TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kennydoit/fin-trade-craft/pkg/config"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// Open connects to TEST_DATABASE_URL, applies the schema and truncates every
// warehouse table. The pool is closed when the test ends.
func Open(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             url,
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: time.Minute,
		},
	}

	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	_, err = db.Pool.Exec(ctx, `
		TRUNCATE source.extraction_watermarks,
		         source.api_responses_landing,
		         source.balance_sheet,
		         source.income_statement,
		         source.cash_flow,
		         source.earnings,
		         source.company_overview,
		         source.time_series_daily_adjusted,
		         transformed.technical_features,
		         transformed.signal_events,
		         transformed.recommendations,
		         source.listing_status RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return db
}
