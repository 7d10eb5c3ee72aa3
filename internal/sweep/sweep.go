// Package sweep runs one unit of work per selected entity and reports each
// outcome to the watermark store. A failing entity never aborts the sweep.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// Status is the terminal state of one unit
type Status string

const (
	StatusSuccess   Status = "success"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is what a Task returns for one entity
type Result struct {
	Status Status
	// ObservedMax is the newest data date the unit saw
	ObservedMax *time.Time
	Rows        int
}

// Task processes one entity. A non-nil error marks the unit failed.
type Task func(ctx context.Context, item contracts.WorkItem) (Result, error)

// Failure records one failed entity
type Failure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// Summary tallies a sweep
type Summary struct {
	Group     contracts.DatasetGroup `json:"group"`
	Total     int                    `json:"total"`
	Success   int                    `json:"success"`
	Unchanged int                    `json:"unchanged"`
	Skipped   int                    `json:"skipped"`
	Failed    int                    `json:"failed"`
	Rows      int                    `json:"rows"`
	Failures  []Failure              `json:"failures,omitempty"`
	Duration  time.Duration          `json:"duration"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d total, %d success, %d unchanged, %d skipped, %d failed",
		s.Group, s.Total, s.Success, s.Unchanged, s.Skipped, s.Failed)
}

func (s *Summary) add(item contracts.WorkItem, res Result, err error) {
	s.Total++
	s.Rows += res.Rows
	if err != nil {
		s.Failed++
		s.Failures = append(s.Failures, Failure{Symbol: item.Symbol, Error: err.Error()})
		return
	}
	switch res.Status {
	case StatusUnchanged:
		s.Unchanged++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Success++
	}
}

// DefaultWorkers is NumCPU-1, at least 1
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

// Runner drives a Task over a list of entities
type Runner struct {
	group   contracts.DatasetGroup
	store   watermark.Store
	logger  *logger.Logger
	workers int
	now     func() time.Time
}

// NewRunner creates a Runner. A nil store disables outcome reporting.
// Full rebuilds still report; blacklisted entities reached that way have no
// eligible watermark to update and are logged at debug level only.
func NewRunner(group contracts.DatasetGroup, store watermark.Store, workers int, log *logger.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		group:   group,
		store:   store,
		logger:  log.WithField("module", "sweep").WithField("group", string(group)),
		workers: workers,
		now:     time.Now,
	}
}

// WithClock overrides the clock used to stamp outcomes
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes task for every item with at most r.workers in flight.
// It only returns an error when ctx is cancelled; per-entity errors land in
// the summary.
func (r *Runner) Run(ctx context.Context, items []contracts.WorkItem, task Task) (Summary, error) {
	start := time.Now()
	summary := Summary{Group: r.group}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, item := range items {
		item := item
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.runOne(gctx, item, task)
			mu.Lock()
			summary.add(item, res, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Symbol < summary.Failures[j].Symbol
	})
	summary.Duration = time.Since(start)

	r.logger.WithFields(map[string]interface{}{
		"total":     summary.Total,
		"success":   summary.Success,
		"unchanged": summary.Unchanged,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"duration":  summary.Duration.String(),
	}).Info("Sweep completed")

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("sweep %s interrupted: %w", r.group, err)
	}
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, item contracts.WorkItem, task Task) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		r.report(ctx, item, res, err)
	}()

	res, err = task(ctx, item)
	if err != nil {
		res.Status = StatusFailed
		r.logger.WithError(err).WithField("symbol", item.Symbol).Warn("Unit failed")
		return res, err
	}
	r.logger.WithFields(map[string]interface{}{
		"symbol": item.Symbol,
		"status": string(res.Status),
		"rows":   res.Rows,
	}).Debug("Unit done")
	return res, nil
}

func (r *Runner) report(ctx context.Context, item contracts.WorkItem, res Result, taskErr error) {
	if r.store == nil {
		return
	}
	// a cancelled sweep leaves the watermark for the next pass
	if ctx.Err() != nil {
		return
	}

	outcome := contracts.Outcome{
		Success:     taskErr == nil,
		ObservedMax: res.ObservedMax,
		At:          r.now(),
	}
	err := r.store.ReportOutcome(ctx, item.SymbolID, r.group, outcome)
	switch {
	case err == nil:
	case errors.Is(err, watermark.ErrNotTracked):
		r.logger.WithField("symbol", item.Symbol).Debug("Outcome not recorded, watermark not tracked or blacklisted")
	default:
		r.logger.WithError(err).WithField("symbol", item.Symbol).Error("Failed to report outcome")
	}
}
