package scoring

import (
	"sort"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

// Ranker orders recommendations by the weighted composite
type Ranker struct {
	weights pipelineconfig.ScoringWeights
	topN    int
}

// NewRanker creates a new ranker. topN <= 0 keeps everything.
func NewRanker(weights pipelineconfig.ScoringWeights, topN int) *Ranker {
	return &Ranker{weights: weights, topN: topN}
}

// Composite is the weighted sum of probability, strength and quality
func (r *Ranker) Composite(probability, strength, quality float64) float64 {
	return probability*r.weights.Probability +
		strength*r.weights.Strength +
		quality*r.weights.Quality
}

// Rank fills Composite and Rank, sorts descending and truncates to topN.
// Ties break on symbol then strategy so reruns rank identically.
func (r *Ranker) Rank(recs []contracts.Recommendation) []contracts.Recommendation {
	for i := range recs {
		recs[i].Composite = r.Composite(recs[i].Probability, recs[i].Strength, recs[i].Quality)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Composite != recs[j].Composite {
			return recs[i].Composite > recs[j].Composite
		}
		if recs[i].Symbol != recs[j].Symbol {
			return recs[i].Symbol < recs[j].Symbol
		}
		return recs[i].Strategy < recs[j].Strategy
	})

	if r.topN > 0 && len(recs) > r.topN {
		recs = recs[:r.topN]
	}
	for i := range recs {
		recs[i].Rank = i + 1
	}
	return recs
}
