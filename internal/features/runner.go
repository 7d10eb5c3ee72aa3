package features

import (
	"context"
	"fmt"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/sweep"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// Mode selects how a run picks its entities
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a --mode flag value
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIncremental:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want full or incremental)", s)
}

// BarSource loads the most recent bars of one entity
type BarSource interface {
	LatestBars(ctx context.Context, symbolID int64, n int) ([]contracts.PriceBar, error)
}

// RowWriter replaces stored feature rows
type RowWriter interface {
	ReplaceWindow(ctx context.Context, symbolID int64, rows []contracts.FeatureRow) (int64, error)
}

// EntitySource lists registry entities
type EntitySource interface {
	Entities(ctx context.Context, activeOnly bool, limit int) ([]contracts.Entity, error)
}

// RunOptions configure one run
type RunOptions struct {
	Mode      Mode
	Workers   int
	Limit     int
	Staleness time.Duration
	Init      bool
}

// Runner recomputes features for a set of entities
type Runner struct {
	transformer *Transformer
	window      int
	bars        BarSource
	writer      RowWriter
	entities    EntitySource
	marks       watermark.Store
	logger      *logger.Logger
	now         func() time.Time
}

// NewRunner creates a Runner reading window bars per entity
func NewRunner(t *Transformer, window int, bars BarSource, writer RowWriter, entities EntitySource, marks watermark.Store, log *logger.Logger) *Runner {
	return &Runner{
		transformer: t,
		window:      window,
		bars:        bars,
		writer:      writer,
		entities:    entities,
		marks:       marks,
		logger:      log.WithField("module", "features"),
		now:         time.Now,
	}
}

// WithClock overrides the clock used for selection and outcomes
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes one full or incremental pass
func (r *Runner) Run(ctx context.Context, opts RunOptions) (sweep.Summary, error) {
	group := contracts.GroupTechnicalFeatures
	workers := opts.Workers
	if workers <= 0 {
		workers = sweep.DefaultWorkers()
	}

	if opts.Init || opts.Mode == ModeFull {
		if _, err := r.marks.InitializeGroup(ctx, group); err != nil {
			return sweep.Summary{}, err
		}
	}

	var items []contracts.WorkItem
	switch opts.Mode {
	case ModeFull:
		entities, err := r.entities.Entities(ctx, false, opts.Limit)
		if err != nil {
			return sweep.Summary{}, err
		}
		items = WorkItems(entities)
	case ModeIncremental:
		var err error
		items, err = r.marks.SelectWork(ctx, group, watermark.SelectOptions{
			Staleness: opts.Staleness,
			Limit:     opts.Limit,
			Now:       r.now(),
		})
		if err != nil {
			return sweep.Summary{}, err
		}
	default:
		return sweep.Summary{}, fmt.Errorf("unknown mode %q", opts.Mode)
	}

	r.logger.WithFields(map[string]interface{}{
		"mode":     string(opts.Mode),
		"entities": len(items),
		"workers":  workers,
		"version":  r.transformer.Version(),
	}).Info("Starting feature run")

	runner := sweep.NewRunner(group, r.marks, workers, r.logger).WithClock(r.now)
	return runner.Run(ctx, items, r.processOne)
}

func (r *Runner) processOne(ctx context.Context, item contracts.WorkItem) (sweep.Result, error) {
	bars, err := r.bars.LatestBars(ctx, item.SymbolID, r.window)
	if err != nil {
		return sweep.Result{}, err
	}
	if len(bars) < r.transformer.MinBars() {
		return sweep.Result{Status: sweep.StatusSkipped}, nil
	}

	rows, err := r.transformer.Transform(item.SymbolID, bars)
	if err != nil {
		return sweep.Result{}, fmt.Errorf("transform %s: %w", item.Symbol, err)
	}

	n, err := r.writer.ReplaceWindow(ctx, item.SymbolID, rows)
	if err != nil {
		return sweep.Result{}, err
	}

	last := bars[len(bars)-1].Date
	return sweep.Result{Status: sweep.StatusSuccess, ObservedMax: &last, Rows: int(n)}, nil
}

// WorkItems converts registry entities into sweep items
func WorkItems(entities []contracts.Entity) []contracts.WorkItem {
	items := make([]contracts.WorkItem, len(entities))
	for i, e := range entities {
		items[i] = contracts.WorkItem{
			SymbolID:      e.SymbolID,
			Symbol:        e.Symbol,
			Status:        e.Status,
			DelistingDate: e.DelistingDate,
		}
	}
	return items
}
