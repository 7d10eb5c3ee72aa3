// Package scoring ranks current buy signals with a pre-trained classifier,
// lagged fundamentals and a quality heuristic.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

// CandidateSource loads current signals with lagged fundamentals
type CandidateSource interface {
	Candidates(ctx context.Context, asOf time.Time, lagDays int) ([]Candidate, error)
}

// RecommendationStore persists one scoring run
type RecommendationStore interface {
	Save(ctx context.Context, runID uuid.UUID, recs []contracts.Recommendation) error
}

// Result is one scoring run. No candidates yields an empty, successful run.
type Result struct {
	RunID           uuid.UUID                  `json:"run_id"`
	AsOf            time.Time                  `json:"as_of"`
	ModelVersion    string                     `json:"model_version"`
	Candidates      int                        `json:"candidates"`
	Recommendations []contracts.Recommendation `json:"recommendations"`
}

// Scorer runs the scoring pipeline
type Scorer struct {
	classifier Classifier
	vectors    *VectorBuilder
	source     CandidateSource
	store      RecommendationStore
	ranker     *Ranker
	lagDays    int
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewScorer validates the classifier's feature names against the columns
// this build produces and fails with ErrFeatureMismatch before any data is
// read.
func NewScorer(classifier Classifier, strategies []string, source CandidateSource, store RecommendationStore, ranker *Ranker, lagDays int, log *logger.Logger) (*Scorer, error) {
	vectors, err := NewVectorBuilder(classifier.FeatureNames(), strategies)
	if err != nil {
		return nil, err
	}
	return &Scorer{
		classifier: classifier,
		vectors:    vectors,
		source:     source,
		store:      store,
		ranker:     ranker,
		lagDays:    lagDays,
		logger:     log.WithField("module", "scoring"),
	}, nil
}

// WithCache publishes each run's recommendations to cache
func (s *Scorer) WithCache(cache *redis.Cache) *Scorer {
	s.cache = cache
	return s
}

func (s *Scorer) modelVersion() string {
	if v, ok := s.classifier.(Versioned); ok {
		return v.Version()
	}
	return "unversioned"
}

// Score ranks the buy signals dated asOf
func (s *Scorer) Score(ctx context.Context, asOf time.Time) (Result, error) {
	result := Result{
		RunID:           uuid.New(),
		AsOf:            asOf,
		ModelVersion:    s.modelVersion(),
		Recommendations: []contracts.Recommendation{},
	}

	candidates, err := s.source.Candidates(ctx, asOf, s.lagDays)
	if err != nil {
		return Result{}, err
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		s.logger.WithField("as_of", asOf.Format("2006-01-02")).Info("No current signals to score")
		return result, nil
	}

	rows := make([][]float64, len(candidates))
	for i, c := range candidates {
		rows[i] = s.vectors.Row(c)
	}
	probs, err := s.classifier.PredictProba(rows)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if len(probs) != len(candidates) {
		return Result{}, fmt.Errorf("predict: %d probabilities for %d rows", len(probs), len(candidates))
	}

	recs := make([]contracts.Recommendation, len(candidates))
	for i, c := range candidates {
		recs[i] = contracts.Recommendation{
			AsOf:         asOf,
			SymbolID:     c.Event.SymbolID,
			Symbol:       c.Symbol,
			Strategy:     c.Event.Strategy,
			Probability:  probs[i],
			Strength:     c.Event.Strength,
			Quality:      QualityScore(c.Fundamentals),
			ModelVersion: result.ModelVersion,
		}
	}
	result.Recommendations = s.ranker.Rank(recs)

	if err := s.store.Save(ctx, result.RunID, result.Recommendations); err != nil {
		return Result{}, err
	}

	if s.cache != nil {
		key := redis.RecommendationsKey(asOf.Format("2006-01-02"))
		if err := s.cache.Set(ctx, key, result, redis.TTLDaily); err != nil {
			s.logger.WithError(err).Warn("Failed to cache recommendations")
		}
	}

	top := result.Recommendations[0]
	s.logger.WithFields(map[string]interface{}{
		"run_id":     result.RunID.String(),
		"candidates": len(candidates),
		"ranked":     len(result.Recommendations),
		"top_symbol": top.Symbol,
		"top_score":  fmt.Sprintf("%.3f", top.Composite),
	}).Info("Scoring completed")

	return result, nil
}
