package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/external/alphavantage"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

func TestListingStates(t *testing.T) {
	tests := []struct {
		in      string
		want    []alphavantage.ListingState
		wantErr bool
	}{
		{"all", []alphavantage.ListingState{alphavantage.ListingStateActive, alphavantage.ListingStateDelisted}, false},
		{"", []alphavantage.ListingState{alphavantage.ListingStateActive, alphavantage.ListingStateDelisted}, false},
		{"Active", []alphavantage.ListingState{alphavantage.ListingStateActive}, false},
		{"delisted", []alphavantage.ListingState{alphavantage.ListingStateDelisted}, false},
		{"pending", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := listingStates(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractGroups(t *testing.T) {
	all, err := extractGroups("ALL")
	require.NoError(t, err)
	assert.Equal(t, contracts.ExtractionGroups(), all)

	one, err := extractGroups("earnings")
	require.NoError(t, err)
	assert.Equal(t, []contracts.DatasetGroup{contracts.GroupEarnings}, one)

	_, err = extractGroups("technical_features")
	assert.ErrorContains(t, err, "derived")

	_, err = extractGroups("dividends")
	assert.Error(t, err)
}

func TestStageFlags_Options(t *testing.T) {
	cfg := pipelineconfig.Default()

	f := stageFlags{mode: "full", workers: 4, limit: 10, init: true}
	opts, err := f.options(cfg, contracts.GroupTechnicalFeatures)
	require.NoError(t, err)
	assert.Equal(t, features.ModeFull, opts.Mode)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 10, opts.Limit)
	assert.True(t, opts.Init)
	assert.Equal(t, cfg.Staleness(contracts.GroupTechnicalFeatures), opts.Staleness)

	f = stageFlags{mode: "incremental", stalenessHours: 6}
	opts, err = f.options(cfg, contracts.GroupSignalEvents)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, opts.Staleness)

	_, err = (&stageFlags{mode: "partial"}).options(cfg, contracts.GroupSignalEvents)
	assert.Error(t, err)

	_, err = (&stageFlags{mode: "full", limit: -1}).options(cfg, contracts.GroupSignalEvents)
	assert.Error(t, err)
}

func TestParseDateFlag(t *testing.T) {
	d, err := parseDateFlag("from", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDateFlag("from", "")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDateFlag("to", "15/03/2024")
	assert.ErrorContains(t, err, "--to")
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/ftc",
		maskPassword("postgres://app:s3cret@db:5432/ftc"))
	assert.Equal(t, "postgres://db:5432/ftc", maskPassword("postgres://db:5432/ftc"))
}
