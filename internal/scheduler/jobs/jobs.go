// Package jobs binds pipeline stages to the scheduler. Every job is an
// incremental sweep; the watermark selector decides what is due.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/extract"
	"github.com/kennydoit/fin-trade-craft/internal/external/alphavantage"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
	"github.com/kennydoit/fin-trade-craft/internal/registry"
	"github.com/kennydoit/fin-trade-craft/internal/sweep"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
)

// Job names, also accepted by `scheduler run`
const (
	NameRegistrySync = "registry_sync"
	NameExtraction   = "extraction"
	NameFeatures     = "features"
	NameSignals      = "signals"
)

// RegistrySyncer refreshes the entity registry
type RegistrySyncer interface {
	Sync(ctx context.Context, states ...alphavantage.ListingState) (registry.UpsertStats, error)
}

// GroupExtractor sweeps several extraction groups
type GroupExtractor interface {
	RunAll(ctx context.Context, groups []contracts.DatasetGroup, optsFor func(contracts.DatasetGroup) extract.RunOptions) ([]sweep.Summary, error)
}

// Sweeper is a derived-group stage: the feature runner or the signal generator
type Sweeper interface {
	Run(ctx context.Context, opts features.RunOptions) (sweep.Summary, error)
}

// RegistrySyncJob refreshes listing_status from the provider
type RegistrySyncJob struct {
	syncer   RegistrySyncer
	schedule string
	logger   *logger.Logger
}

// NewRegistrySyncJob creates the registry job
func NewRegistrySyncJob(syncer RegistrySyncer, schedule string, log *logger.Logger) *RegistrySyncJob {
	return &RegistrySyncJob{syncer: syncer, schedule: schedule, logger: log}
}

func (j *RegistrySyncJob) Name() string     { return NameRegistrySync }
func (j *RegistrySyncJob) Schedule() string { return j.schedule }

func (j *RegistrySyncJob) Run(ctx context.Context) error {
	stats, err := j.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("registry sync: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
		"delisted": stats.Delisted,
	}).Info("Registry sync job done")
	return nil
}

// ExtractionJob sweeps every provider group with a per-group limit
type ExtractionJob struct {
	extractor GroupExtractor
	groups    []contracts.DatasetGroup
	optsFor   func(contracts.DatasetGroup) extract.RunOptions
	schedule  string
	logger    *logger.Logger
}

// NewExtractionJob creates the extraction job from the pipeline config.
// Watermarks for new registry entries are initialized on every run.
func NewExtractionJob(extractor GroupExtractor, cfg *pipelineconfig.Config, log *logger.Logger) *ExtractionJob {
	return &ExtractionJob{
		extractor: extractor,
		groups:    contracts.ExtractionGroups(),
		optsFor:   extract.OptionsFrom(cfg, true, cfg.Schedule.ExtractionLimit, 0),
		schedule:  cfg.Schedule.Extraction,
		logger:    log,
	}
}

func (j *ExtractionJob) Name() string     { return NameExtraction }
func (j *ExtractionJob) Schedule() string { return j.schedule }

func (j *ExtractionJob) Run(ctx context.Context) error {
	summaries, err := j.extractor.RunAll(ctx, j.groups, j.optsFor)
	for _, s := range summaries {
		logSummary(j.logger, NameExtraction, s)
	}
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	return nil
}

// SweepJob runs a derived stage incrementally
type SweepJob struct {
	name     string
	sweeper  Sweeper
	opts     features.RunOptions
	schedule string
	logger   *logger.Logger
}

// NewFeaturesJob recomputes features for entities with new bars
func NewFeaturesJob(runner Sweeper, cfg *pipelineconfig.Config, workers int, log *logger.Logger) *SweepJob {
	return newSweepJob(NameFeatures, runner, cfg.Schedule.Features, cfg.Staleness(contracts.GroupTechnicalFeatures), workers, log)
}

// NewSignalsJob evaluates strategies for entities with new feature rows
func NewSignalsJob(generator Sweeper, cfg *pipelineconfig.Config, workers int, log *logger.Logger) *SweepJob {
	return newSweepJob(NameSignals, generator, cfg.Schedule.Signals, cfg.Staleness(contracts.GroupSignalEvents), workers, log)
}

func newSweepJob(name string, s Sweeper, schedule string, staleness time.Duration, workers int, log *logger.Logger) *SweepJob {
	return &SweepJob{
		name:    name,
		sweeper: s,
		opts: features.RunOptions{
			Mode:      features.ModeIncremental,
			Workers:   workers,
			Staleness: staleness,
			Init:      true,
		},
		schedule: schedule,
		logger:   log,
	}
}

func (j *SweepJob) Name() string     { return j.name }
func (j *SweepJob) Schedule() string { return j.schedule }

func (j *SweepJob) Run(ctx context.Context) error {
	summary, err := j.sweeper.Run(ctx, j.opts)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logSummary(j.logger, j.name, summary)
	return nil
}

func logSummary(log *logger.Logger, job string, s sweep.Summary) {
	log.WithFields(map[string]interface{}{
		"job":       job,
		"group":     string(s.Group),
		"total":     s.Total,
		"success":   s.Success,
		"unchanged": s.Unchanged,
		"skipped":   s.Skipped,
		"failed":    s.Failed,
	}).Info("Sweep finished")
}
