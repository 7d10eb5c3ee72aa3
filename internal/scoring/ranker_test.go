package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

func TestRanker_Rank(t *testing.T) {
	r := NewRanker(pipelineconfig.Default().Scoring.Weights, 2)

	recs := []contracts.Recommendation{
		{Symbol: "LOW", Strategy: "s", Probability: 0.2, Strength: 0.2, Quality: 0.2},
		{Symbol: "TOP", Strategy: "s", Probability: 0.9, Strength: 0.5, Quality: 0.5},
		{Symbol: "BBB", Strategy: "s", Probability: 0.6, Strength: 0.5, Quality: 0.5},
		{Symbol: "AAA", Strategy: "s", Probability: 0.6, Strength: 0.5, Quality: 0.5},
	}

	got := r.Rank(recs)
	require.Len(t, got, 2)
	assert.Equal(t, "TOP", got[0].Symbol)
	assert.Equal(t, 1, got[0].Rank)
	assert.InDelta(t, 0.9*0.5+0.5*0.3+0.5*0.2, got[0].Composite, 1e-12)
	// tie broken by symbol
	assert.Equal(t, "AAA", got[1].Symbol)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRanker_NoTopN(t *testing.T) {
	r := NewRanker(pipelineconfig.ScoringWeights{Probability: 1}, 0)
	got := r.Rank([]contracts.Recommendation{{Probability: 0.1}, {Probability: 0.7}, {Probability: 0.4}})
	require.Len(t, got, 3)
	assert.Equal(t, 0.7, got[0].Composite)
	assert.Equal(t, 3, got[2].Rank)
}
