package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database/dbtest"
)

func TestRepository_UpsertNeverDeletes(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(db.Pool)

	stats, err := repo.Upsert(ctx, []contracts.Listing{
		{Symbol: "IBM", Name: "IBM", Exchange: "NYSE", AssetType: "Stock", Status: contracts.ListingActive},
		{Symbol: "XYZ", Name: "XYZ", Exchange: "NASDAQ", AssetType: "Stock", Status: contracts.ListingActive},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)

	before, err := repo.Lookup(ctx, "XYZ")
	require.NoError(t, err)

	delistedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	stats, err = repo.Upsert(ctx, []contracts.Listing{
		{Symbol: "IBM", Name: "IBM", Exchange: "NYSE", AssetType: "Stock", Status: contracts.ListingActive},
		{Symbol: "XYZ", Name: "XYZ", Exchange: "NASDAQ", AssetType: "Stock", Status: contracts.ListingDelisted, DelistingDate: &delistedAt},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, stats.Delisted)

	after, err := repo.Lookup(ctx, "XYZ")
	require.NoError(t, err)
	assert.Equal(t, before.SymbolID, after.SymbolID)
	assert.Equal(t, contracts.ListingDelisted, after.Status)
	require.NotNil(t, after.DelistingDate)

	all, err := repo.Entities(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := repo.Entities(ctx, true, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "IBM", active[0].Symbol)

	_, err = repo.Lookup(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	counts, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[contracts.ListingActive])
	assert.EqualValues(t, 1, counts[contracts.ListingDelisted])
}
