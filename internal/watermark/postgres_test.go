package watermark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database/dbtest"
)

func TestPostgresStore_Lifecycle(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	store := NewPostgresStore(db.Pool)
	group := contracts.GroupIncomeStatement

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO source.listing_status (symbol, status, delisting_date) VALUES
		('AAA', 'Active', NULL),
		('BBB', 'Active', NULL),
		('OLD', 'Delisted', '2023-06-01')`)
	require.NoError(t, err)

	added, err := store.InitializeGroup(ctx, group)
	require.NoError(t, err)
	assert.EqualValues(t, 3, added)

	added, err = store.InitializeGroup(ctx, group)
	require.NoError(t, err)
	assert.Zero(t, added)

	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	opts := SelectOptions{Staleness: 24 * time.Hour, Now: now}

	items, err := store.SelectWork(ctx, group, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "OLD"}, symbolsOf(items))

	// success advances, a stale observation never moves the date back
	require.NoError(t, store.ReportOutcome(ctx, 1, group, contracts.Outcome{Success: true, ObservedMax: ptr(date(2024, 3, 31)), At: now}))
	require.NoError(t, store.ReportOutcome(ctx, 1, group, contracts.Outcome{Success: true, ObservedMax: ptr(date(2023, 9, 30)), At: now}))

	var last time.Time
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT last_date_processed FROM source.extraction_watermarks WHERE symbol_id = 1 AND table_name = $1`,
		string(group)).Scan(&last))
	assert.Equal(t, date(2024, 3, 31), last.UTC())

	// delisted entity caught up to its delisting date drops out
	require.NoError(t, store.ReportOutcome(ctx, 3, group, contracts.Outcome{Success: true, ObservedMax: ptr(date(2023, 6, 1)), At: now}))

	for i := 0; i < contracts.MaxConsecutiveFailures; i++ {
		require.NoError(t, store.ReportOutcome(ctx, 2, group, contracts.Outcome{At: now}))
	}
	assert.ErrorIs(t, store.ReportOutcome(ctx, 2, group, contracts.Outcome{At: now}), ErrNotTracked)

	items, err = store.SelectWork(ctx, group, SelectOptions{Staleness: time.Hour, Now: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, symbolsOf(items))

	bl, err := store.Blacklisted(ctx, group)
	require.NoError(t, err)
	require.Len(t, bl, 1)
	assert.Equal(t, "BBB", bl[0].Symbol)

	require.NoError(t, store.Reset(ctx, 2, group))
	items, err = store.SelectWork(ctx, group, SelectOptions{Staleness: 24 * time.Hour, Now: now, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, symbolsOf(items))

	sum, err := store.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, sum, 1)
	assert.EqualValues(t, 3, sum[0].Tracked)
	assert.EqualValues(t, 1, sum[0].NeverRun)
	assert.Zero(t, sum[0].Blacklisted)
}

func TestPostgresStore_GapRecheck(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	store := NewPostgresStore(db.Pool)
	group := contracts.GroupEarnings

	_, err := db.Pool.Exec(ctx, `INSERT INTO source.listing_status (symbol) VALUES ('LATE')`)
	require.NoError(t, err)
	_, err = store.InitializeGroup(ctx, group)
	require.NoError(t, err)

	lastRun := time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ReportOutcome(ctx, 1, group, contracts.Outcome{
		Success: true, ObservedMax: ptr(date(2023, 12, 31)), At: lastRun,
	}))

	gap := GapConfig{ReportingLag: 45 * 24 * time.Hour, RecheckInterval: 7 * 24 * time.Hour}

	opts := NewSelectOptions(group, 30*24*time.Hour, 0, lastRun.Add(2*24*time.Hour), gap)
	items, err := store.SelectWork(ctx, group, opts)
	require.NoError(t, err)
	assert.Empty(t, items)

	opts = NewSelectOptions(group, 30*24*time.Hour, 0, lastRun.Add(8*24*time.Hour), gap)
	items, err = store.SelectWork(ctx, group, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"LATE"}, symbolsOf(items))
}
