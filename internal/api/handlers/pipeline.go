package handlers

import (
	"context"
	"net/http"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/monitor"
	"github.com/kennydoit/fin-trade-craft/internal/scheduler"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// QualityReader returns the latest data-quality report
type QualityReader interface {
	Cached(ctx context.Context) (*monitor.Report, error)
}

// RecommendationReader returns the most recent scoring run
type RecommendationReader interface {
	Latest(ctx context.Context) ([]contracts.Recommendation, error)
}

// JobStatsReader reports scheduler state
type JobStatsReader interface {
	Stats() []scheduler.JobStats
}

// PipelineHandler serves pipeline outputs: quality, recommendations and jobs
type PipelineHandler struct {
	quality QualityReader
	recs    RecommendationReader
	jobs    JobStatsReader
	logger  *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler. jobs may be nil when
// the API runs without the scheduler.
func NewPipelineHandler(quality QualityReader, recs RecommendationReader, jobs JobStatsReader, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{quality: quality, recs: recs, jobs: jobs, logger: log}
}

// GetQuality returns the data-quality report
// GET /api/quality
func (h *PipelineHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	report, err := h.quality.Cached(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build quality report")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve quality report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// RecommendationsResponse wraps the latest ranked list
type RecommendationsResponse struct {
	Count           int                        `json:"count"`
	Recommendations []contracts.Recommendation `json:"recommendations"`
}

// GetLatestRecommendations returns the most recent ranked recommendations
// GET /api/recommendations/latest
func (h *PipelineHandler) GetLatestRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recs.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load recommendations")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve recommendations")
		return
	}
	if len(recs) == 0 {
		respondError(w, http.StatusNotFound, "No scoring run recorded")
		return
	}
	respondJSON(w, http.StatusOK, RecommendationsResponse{Count: len(recs), Recommendations: recs})
}

// GetJobs returns scheduler statistics
// GET /api/scheduler/jobs
func (h *PipelineHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, http.StatusNotFound, "Scheduler not running in this process")
		return
	}
	respondJSON(w, http.StatusOK, h.jobs.Stats())
}
