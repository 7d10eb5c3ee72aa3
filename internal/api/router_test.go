package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/api/handlers"
	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/monitor"
	"github.com/kennydoit/fin-trade-craft/internal/scheduler"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(ctx context.Context) (*database.HealthStatus, error) {
	return &database.HealthStatus{Healthy: f.err == nil}, f.err
}

type fakeQuality struct{ report *monitor.Report }

func (f fakeQuality) Cached(ctx context.Context) (*monitor.Report, error) {
	return f.report, nil
}

type fakeRecs struct{ recs []contracts.Recommendation }

func (f fakeRecs) Latest(ctx context.Context) ([]contracts.Recommendation, error) {
	return f.recs, nil
}

type fakeJobs struct{}

func (fakeJobs) Stats() []scheduler.JobStats {
	return []scheduler.JobStats{{JobName: "features", Schedule: "0 30 21 * * 1-5", TotalRuns: 2}}
}

type panicQuality struct{}

func (panicQuality) Cached(ctx context.Context) (*monitor.Report, error) {
	panic("boom")
}

func newTestRouter(t *testing.T, db handlers.HealthChecker, quality handlers.QualityReader, recs handlers.RecommendationReader) (http.Handler, *watermark.MemoryStore) {
	t.Helper()
	log := logger.NewNop()
	marks := watermark.NewMemoryStore(contracts.Entity{SymbolID: 1, Symbol: "AAPL", Status: contracts.ListingActive})
	_, err := marks.InitializeGroup(context.Background(), contracts.GroupBalanceSheet)
	require.NoError(t, err)

	cache := redis.NewCache(redis.Disabled(), "test")
	return NewRouter(Handlers{
		Health:     handlers.NewHealthHandler(db, redis.Disabled(), "fin-trade-craft", log),
		Watermarks: handlers.NewWatermarkHandler(marks, cache, log),
		Pipeline:   handlers.NewPipelineHandler(quality, recs, fakeJobs{}, log),
	}, log), marks
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t, fakeDB{}, fakeQuality{}, fakeRecs{})
	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	down, _ := newTestRouter(t, fakeDB{err: errors.New("refused")}, fakeQuality{}, fakeRecs{})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down, "/health").Code)
}

func TestRouter_Watermarks(t *testing.T) {
	r, marks := newTestRouter(t, fakeDB{}, fakeQuality{}, fakeRecs{})
	for i := 0; i < 3; i++ {
		require.NoError(t, marks.ReportOutcome(context.Background(), 1, contracts.GroupBalanceSheet,
			contracts.Outcome{Success: false, At: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}))
	}

	rec := get(t, r, "/api/watermarks/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary []watermark.GroupSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.NotEmpty(t, summary)

	rec = get(t, r, "/api/watermarks/balance_sheet/blacklist")
	require.Equal(t, http.StatusOK, rec.Code)
	var bl handlers.BlacklistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bl))
	assert.Equal(t, contracts.GroupBalanceSheet, bl.Group)
	assert.Equal(t, 1, bl.Count)

	rec = get(t, r, "/api/watermarks/earnings/blacklist")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/watermarks/not_a_table/blacklist").Code)
}

func TestRouter_QualityAndRecommendations(t *testing.T) {
	report := &monitor.Report{Passed: true, Issues: []string{}}
	recs := []contracts.Recommendation{
		{Symbol: "AAPL", Strategy: "rsi_reversal", Composite: 0.8, Rank: 1},
		{Symbol: "MSFT", Strategy: "macd_crossover", Composite: 0.6, Rank: 2},
	}
	r, _ := newTestRouter(t, fakeDB{}, fakeQuality{report: report}, fakeRecs{recs: recs})

	rec := get(t, r, "/api/quality")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"passed":true`)

	rec = get(t, r, "/api/recommendations/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var body handlers.RecommendationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "AAPL", body.Recommendations[0].Symbol)

	empty, _ := newTestRouter(t, fakeDB{}, fakeQuality{report: report}, fakeRecs{})
	assert.Equal(t, http.StatusNotFound, get(t, empty, "/api/recommendations/latest").Code)

	rec = get(t, r, "/api/scheduler/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job_name":"features"`)
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	r, _ := newTestRouter(t, fakeDB{}, fakeQuality{}, fakeRecs{})
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/unknown").Code)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quality", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	r, _ := newTestRouter(t, fakeDB{}, panicQuality{}, fakeRecs{})
	rec := get(t, r, "/api/quality")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
