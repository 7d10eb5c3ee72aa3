package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

// WatermarkReader is the read side of the watermark store
type WatermarkReader interface {
	Blacklisted(ctx context.Context, group contracts.DatasetGroup) ([]contracts.Watermark, error)
	Summary(ctx context.Context) ([]watermark.GroupSummary, error)
}

// WatermarkHandler exposes processing state per dataset group
type WatermarkHandler struct {
	marks  WatermarkReader
	cache  *redis.Cache
	logger *logger.Logger
}

// NewWatermarkHandler creates a new watermark handler. cache may be nil.
func NewWatermarkHandler(marks WatermarkReader, cache *redis.Cache, log *logger.Logger) *WatermarkHandler {
	return &WatermarkHandler{marks: marks, cache: cache, logger: log}
}

// GetSummary returns tracked, never-run and blacklisted counts per group
// GET /api/watermarks/summary
func (h *WatermarkHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.marks.Summary(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize watermarks")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve watermark summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// BlacklistResponse lists blacklisted entities of one group
type BlacklistResponse struct {
	Group   contracts.DatasetGroup `json:"group"`
	Count   int                    `json:"count"`
	Entries []contracts.Watermark  `json:"entries"`
}

// GetBlacklist returns the blacklisted entities of a group
// GET /api/watermarks/{group}/blacklist
func (h *WatermarkHandler) GetBlacklist(w http.ResponseWriter, r *http.Request) {
	group, err := contracts.ParseDatasetGroup(mux.Vars(r)["group"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	load := func() (interface{}, error) {
		entries, err := h.marks.Blacklisted(r.Context(), group)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []contracts.Watermark{}
		}
		return BlacklistResponse{Group: group, Count: len(entries), Entries: entries}, nil
	}

	var resp BlacklistResponse
	if h.cache != nil {
		err = h.cache.GetOrSet(r.Context(), redis.BlacklistKey(string(group)), &resp, redis.TTLShort, load)
	} else {
		var v interface{}
		if v, err = load(); err == nil {
			resp = v.(BlacklistResponse)
		}
	}
	if err != nil {
		h.logger.WithError(err).WithField("group", string(group)).Error("Failed to list blacklist")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve blacklist")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
