// Package extract pulls provider datasets into the warehouse. Every attempt
// lands its raw response; only records whose content hash changed are
// upserted into the fact tables.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
	"github.com/kennydoit/fin-trade-craft/internal/sweep"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// Fetcher retrieves one provider function for one symbol
type Fetcher interface {
	Fetch(ctx context.Context, symbol, function string) ([]byte, contracts.ResponseStatus, error)
}

// FactStore persists landings and facts
type FactStore interface {
	InsertLanding(ctx context.Context, l contracts.RawLanding) error
	StoredHashes(ctx context.Context, group contracts.DatasetGroup, symbolID int64) (map[contracts.FactKey]string, error)
	UpsertFacts(ctx context.Context, group contracts.DatasetGroup, runID uuid.UUID, records []contracts.FactRecord) (int64, error)
}

// ResponseError is returned for provider responses that count as failures
type ResponseError struct {
	Status contracts.ResponseStatus
	Err    error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s", e.Status)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Extractor runs extraction sweeps for one provider
type Extractor struct {
	fetcher Fetcher
	facts   FactStore
	marks   watermark.Store
	logger  *logger.Logger
	now     func() time.Time
}

// New creates an Extractor
func New(fetcher Fetcher, facts FactStore, marks watermark.Store, log *logger.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		facts:   facts,
		marks:   marks,
		logger:  log.WithField("module", "extract"),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for landings and outcomes
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// RunOptions configure one sweep
type RunOptions struct {
	Init      bool
	Staleness time.Duration
	Limit     int
	Gap       watermark.GapConfig
}

// Run selects due entities for group and extracts them one at a time.
// Pacing between calls is the fetcher's job.
func (e *Extractor) Run(ctx context.Context, group contracts.DatasetGroup, opts RunOptions) (sweep.Summary, error) {
	if !group.IsExtraction() {
		return sweep.Summary{}, fmt.Errorf("group %s is not extracted from the provider", group)
	}

	if opts.Init {
		added, err := e.marks.InitializeGroup(ctx, group)
		if err != nil {
			return sweep.Summary{}, err
		}
		e.logger.WithFields(map[string]interface{}{
			"group": string(group),
			"added": added,
		}).Info("Initialized watermarks")
	}

	now := e.now()
	items, err := e.marks.SelectWork(ctx, group,
		watermark.NewSelectOptions(group, opts.Staleness, opts.Limit, now, opts.Gap))
	if err != nil {
		return sweep.Summary{}, err
	}

	runID := uuid.New()
	e.logger.WithFields(map[string]interface{}{
		"group":    string(group),
		"selected": len(items),
		"run_id":   runID.String(),
	}).Info("Starting extraction sweep")

	runner := sweep.NewRunner(group, e.marks, 1, e.logger).WithClock(e.now)
	return runner.Run(ctx, items, func(ctx context.Context, item contracts.WorkItem) (sweep.Result, error) {
		return e.ExtractOne(ctx, runID, group, item)
	})
}

// ExtractOne fetches, lands, diffs and upserts one entity. It does not
// touch the watermark; the sweep reports the returned outcome.
func (e *Extractor) ExtractOne(ctx context.Context, runID uuid.UUID, group contracts.DatasetGroup, item contracts.WorkItem) (sweep.Result, error) {
	function := group.APIFunction()

	payload, status, fetchErr := e.fetcher.Fetch(ctx, item.Symbol, function)
	if fetchErr != nil {
		status = contracts.StatusError
	}

	landing := contracts.RawLanding{
		RunID:        runID,
		Group:        group,
		SymbolID:     item.SymbolID,
		APIFunction:  function,
		Status:       status,
		Payload:      payload,
		ResponseHash: HashPayload(payload),
		FetchedAt:    e.now(),
	}
	if err := e.facts.InsertLanding(ctx, landing); err != nil {
		return sweep.Result{}, err
	}

	if status.CountsAsFailure() {
		return sweep.Result{}, &ResponseError{Status: status, Err: fetchErr}
	}
	if status == contracts.StatusEmpty {
		return sweep.Result{Status: sweep.StatusSkipped}, nil
	}

	records, observed, err := Normalize(group, item.SymbolID, payload)
	if err != nil {
		return sweep.Result{}, fmt.Errorf("normalize %s: %w", item.Symbol, err)
	}

	stored, err := e.facts.StoredHashes(ctx, group, item.SymbolID)
	if err != nil {
		return sweep.Result{}, err
	}

	changed := ChangedRecords(records, stored)
	if len(changed) == 0 {
		return sweep.Result{Status: sweep.StatusUnchanged, ObservedMax: observed}, nil
	}

	written, err := e.facts.UpsertFacts(ctx, group, runID, changed)
	if err != nil {
		return sweep.Result{}, err
	}

	return sweep.Result{Status: sweep.StatusSuccess, ObservedMax: observed, Rows: int(written)}, nil
}

// ChangedRecords keeps the records that are new or whose hash differs
func ChangedRecords(records []contracts.FactRecord, stored map[contracts.FactKey]string) []contracts.FactRecord {
	out := make([]contracts.FactRecord, 0, len(records))
	for _, r := range records {
		if h, ok := stored[r.Key()]; ok && h == r.ContentHash {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RunAll sweeps every extraction group in order and returns one summary per
// group. A group that fails to start does not stop the others.
func (e *Extractor) RunAll(ctx context.Context, groups []contracts.DatasetGroup, optsFor func(contracts.DatasetGroup) RunOptions) ([]sweep.Summary, error) {
	out := make([]sweep.Summary, 0, len(groups))
	var firstErr error
	for _, g := range groups {
		sum, err := e.Run(ctx, g, optsFor(g))
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			e.logger.WithError(err).WithField("group", string(g)).Error("Extraction sweep failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, sum)
	}
	return out, firstErr
}

// OptionsFrom derives per-group sweep options from the pipeline config.
// A positive staleness override applies to every group.
func OptionsFrom(cfg *pipelineconfig.Config, init bool, limit int, staleness time.Duration) func(contracts.DatasetGroup) RunOptions {
	gap := watermark.GapConfig{
		ReportingLag:    cfg.ReportingLag(),
		RecheckInterval: cfg.RecheckInterval(),
	}
	return func(g contracts.DatasetGroup) RunOptions {
		s := staleness
		if s <= 0 {
			s = cfg.Staleness(g)
		}
		return RunOptions{Init: init, Staleness: s, Limit: limit, Gap: gap}
	}
}
