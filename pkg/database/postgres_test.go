package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/pkg/config"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             "invalid://url",
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestTraceLevel(t *testing.T) {
	assert.Equal(t, tracelog.LogLevelDebug, traceLevel("debug"))
	assert.Equal(t, tracelog.LogLevelInfo, traceLevel("info"))
	assert.Equal(t, tracelog.LogLevelWarn, traceLevel("warn"))
	assert.Equal(t, tracelog.LogLevelError, traceLevel("error"))
	assert.Equal(t, tracelog.LogLevelError, traceLevel(""))
}

func TestQueryTracer(t *testing.T) {
	var buf strings.Builder
	tracer := NewQueryTracer(logger.NewWithWriter(&buf, "debug").Zerolog())

	tracer.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]interface{}{
		"sql":  "SELECT 1",
		"time": 2 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, `"sql":"SELECT 1"`)
	assert.Contains(t, out, `"duration_ms":2000`)
	assert.Contains(t, out, `"slow":true`)
}

func TestSchemaSQL(t *testing.T) {
	sql := SchemaSQL()
	for _, table := range []string{
		"source.listing_status",
		"source.extraction_watermarks",
		"source.api_responses_landing",
		"source.time_series_daily_adjusted",
		"transformed.technical_features",
		"transformed.signal_events",
		"transformed.recommendations",
	} {
		assert.Contains(t, sql, table)
	}
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(ctx context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { f.rolledBack = true; return nil }

type fakeBeginner struct {
	TxBeginner
	tx *fakeTx
}

func (f *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) { return f.tx, nil }

func TestWithTx(t *testing.T) {
	t.Run("commit on success", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		err := WithTx(context.Background(), b, func(tx pgx.Tx) error { return nil })
		require.NoError(t, err)
		assert.True(t, b.tx.committed)
	})

	t.Run("rollback on error", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		boom := errors.New("boom")
		err := WithTx(context.Background(), b, func(tx pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, b.tx.committed)
		assert.True(t, b.tx.rolledBack)
	})
}
