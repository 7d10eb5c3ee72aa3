package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/internal/sweep"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// FrameSource loads the most recent feature rows of one entity
type FrameSource interface {
	LatestRows(ctx context.Context, symbolID int64, n int) ([]contracts.FeatureRow, error)
}

// EventWriter upserts signal events
type EventWriter interface {
	Upsert(ctx context.Context, events []contracts.SignalEvent) (int64, error)
}

// Generator evaluates strategies per entity and stores the events
type Generator struct {
	strategies []Strategy
	frameSize  int
	frames     FrameSource
	writer     EventWriter
	entities   features.EntitySource
	marks      watermark.Store
	logger     *logger.Logger
	now        func() time.Time
}

// NewGenerator creates a Generator reading frameSize rows per entity
func NewGenerator(strategies []Strategy, frameSize int, frames FrameSource, writer EventWriter, entities features.EntitySource, marks watermark.Store, log *logger.Logger) *Generator {
	return &Generator{
		strategies: strategies,
		frameSize:  frameSize,
		frames:     frames,
		writer:     writer,
		entities:   entities,
		marks:      marks,
		logger:     log.WithField("module", "signals"),
		now:        time.Now,
	}
}

// WithClock overrides the clock used for selection and outcomes
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Run executes one full or incremental pass over the signal_events group
func (g *Generator) Run(ctx context.Context, opts features.RunOptions) (sweep.Summary, error) {
	group := contracts.GroupSignalEvents
	workers := opts.Workers
	if workers <= 0 {
		workers = sweep.DefaultWorkers()
	}

	if opts.Init || opts.Mode == features.ModeFull {
		if _, err := g.marks.InitializeGroup(ctx, group); err != nil {
			return sweep.Summary{}, err
		}
	}

	var items []contracts.WorkItem
	switch opts.Mode {
	case features.ModeFull:
		entities, err := g.entities.Entities(ctx, false, opts.Limit)
		if err != nil {
			return sweep.Summary{}, err
		}
		items = features.WorkItems(entities)
	case features.ModeIncremental:
		var err error
		items, err = g.marks.SelectWork(ctx, group, watermark.SelectOptions{
			Staleness: opts.Staleness,
			Limit:     opts.Limit,
			Now:       g.now(),
		})
		if err != nil {
			return sweep.Summary{}, err
		}
	default:
		return sweep.Summary{}, fmt.Errorf("unknown mode %q", opts.Mode)
	}

	names := make([]string, len(g.strategies))
	for i, s := range g.strategies {
		names[i] = s.Name()
	}
	g.logger.WithFields(map[string]interface{}{
		"mode":       string(opts.Mode),
		"entities":   len(items),
		"workers":    workers,
		"strategies": names,
	}).Info("Starting signal run")

	runner := sweep.NewRunner(group, g.marks, workers, g.logger).WithClock(g.now)
	return runner.Run(ctx, items, g.processOne)
}

func (g *Generator) processOne(ctx context.Context, item contracts.WorkItem) (sweep.Result, error) {
	rows, err := g.frames.LatestRows(ctx, item.SymbolID, g.frameSize)
	if err != nil {
		return sweep.Result{}, err
	}
	if len(rows) < 2 {
		return sweep.Result{Status: sweep.StatusSkipped}, nil
	}

	events := Evaluate(g.strategies, Frame{SymbolID: item.SymbolID, Rows: rows})
	n, err := g.writer.Upsert(ctx, events)
	if err != nil {
		return sweep.Result{}, fmt.Errorf("store signals %s: %w", item.Symbol, err)
	}

	last := rows[len(rows)-1].Date
	status := sweep.StatusSuccess
	if n == 0 {
		status = sweep.StatusUnchanged
	}
	return sweep.Result{Status: status, ObservedMax: &last, Rows: int(n)}, nil
}
