package handlers

import (
	"context"
	"net/http"

	"github.com/kennydoit/fin-trade-craft/pkg/database"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// HealthChecker reports database health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Pinger checks an optional dependency such as the cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness probe
type HealthHandler struct {
	db      HealthChecker
	cache   Pinger
	service string
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(db HealthChecker, cache Pinger, service string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, service: service, logger: log}
}

// Health reports database pool stats. A database failure is a 503; a cache
// failure only marks the response degraded since every reader falls back to
// Postgres.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": h.service,
		"cache":   "ok",
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			h.logger.WithError(err).Warn("Cache ping failed")
			body["status"] = "degraded"
			body["cache"] = err.Error()
		}
	}

	status, err := h.db.HealthCheck(r.Context())
	body["database"] = status
	if err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		body["status"] = "down"
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	respondJSON(w, http.StatusOK, body)
}
