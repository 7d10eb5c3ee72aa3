package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatasetGroup(t *testing.T) {
	g, err := ParseDatasetGroup(" Balance_Sheet ")
	require.NoError(t, err)
	assert.Equal(t, GroupBalanceSheet, g)

	_, err = ParseDatasetGroup("balance_sheet; DROP TABLE x")
	assert.Error(t, err)
}

func TestExtractionGroups(t *testing.T) {
	groups := ExtractionGroups()
	assert.Len(t, groups, 6)
	for _, g := range groups {
		assert.True(t, g.IsExtraction(), g)
		assert.NotEmpty(t, g.APIFunction())
	}
	assert.False(t, GroupTechnicalFeatures.IsExtraction())
	assert.False(t, GroupSignalEvents.IsExtraction())
}

func TestQuarterlyGroups(t *testing.T) {
	assert.True(t, GroupBalanceSheet.IsQuarterly())
	assert.True(t, GroupEarnings.IsQuarterly())
	assert.False(t, GroupDailyPrices.IsQuarterly())
	assert.False(t, GroupCompanyOverview.IsQuarterly())
}

func TestResponseStatusCountsAsFailure(t *testing.T) {
	assert.False(t, StatusSuccess.CountsAsFailure())
	assert.False(t, StatusEmpty.CountsAsFailure())
	assert.True(t, StatusError.CountsAsFailure())
	assert.True(t, StatusRateLimited.CountsAsFailure())
}

func TestWatermarkBlacklisted(t *testing.T) {
	assert.False(t, Watermark{Eligible: true, ConsecutiveFailures: 2}.Blacklisted())
	assert.True(t, Watermark{Eligible: true, ConsecutiveFailures: 3}.Blacklisted())
	assert.True(t, Watermark{Eligible: false}.Blacklisted())
}
