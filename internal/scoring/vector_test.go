package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

var shippedStrategies = pipelineconfig.Default().Signals.Strategies

func TestSectorColumn(t *testing.T) {
	assert.Equal(t, "sector_trade_services", sectorColumn("TRADE & SERVICES"))
	assert.Equal(t, "sector_real_estate_construction", sectorColumn("Real Estate & Construction"))
	assert.Equal(t, "sector_technology", sectorColumn(" technology "))
	assert.Equal(t, "sector_other", sectorColumn("Crypto"))
	assert.Equal(t, "sector_other", sectorColumn(""))
}

func TestNewVectorBuilder_Mismatch(t *testing.T) {
	names := ExpectedFeatures(shippedStrategies)

	_, err := NewVectorBuilder(names, shippedStrategies)
	require.NoError(t, err)

	_, err = NewVectorBuilder(names[1:], shippedStrategies)
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
	assert.ErrorContains(t, err, names[0])

	_, err = NewVectorBuilder(append(names, "fund_magic"), shippedStrategies)
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
	assert.ErrorContains(t, err, "fund_magic")

	// a strategy enabled here but unknown to the model
	_, err = NewVectorBuilder(names, append(shippedStrategies, "gap_fill"))
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestVectorBuilder_RowFollowsClassifierOrder(t *testing.T) {
	names := ExpectedFeatures([]string{"rsi_reversal"})
	// reverse to prove the classifier's order wins
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	b, err := NewVectorBuilder(names, []string{"rsi_reversal"})
	require.NoError(t, err)

	row := b.Row(Candidate{
		Event: contracts.SignalEvent{Strategy: "rsi_reversal"},
		Fundamentals: Fundamentals{
			Sector: "FINANCE",
			Values: map[string]float64{FundROE: 0.2, FundDebtRatio: 1.5},
		},
	})

	got := make(map[string]float64)
	for i, n := range names {
		got[n] = row[i]
	}
	assert.Equal(t, 1.0, got["strategy_rsi_reversal"])
	assert.Equal(t, 1.0, got["sector_finance"])
	assert.Equal(t, 0.0, got["sector_other"])
	assert.Equal(t, 0.2, got[FundROE])
	assert.Equal(t, 1.5, got[FundDebtRatio])
	assert.Equal(t, 0.0, got[FundPERatio])
}
