package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kennydoit/fin-trade-craft/internal/backtest"
	"github.com/kennydoit/fin-trade-craft/internal/extract"
	"github.com/kennydoit/fin-trade-craft/internal/external/alphavantage"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/internal/monitor"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
	"github.com/kennydoit/fin-trade-craft/internal/registry"
	"github.com/kennydoit/fin-trade-craft/internal/scoring"
	"github.com/kennydoit/fin-trade-craft/internal/signals"
	"github.com/kennydoit/fin-trade-craft/internal/watermark"
	"github.com/kennydoit/fin-trade-craft/pkg/config"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
	"github.com/kennydoit/fin-trade-craft/pkg/httputil"
	"github.com/kennydoit/fin-trade-craft/pkg/logger"
	"github.com/kennydoit/fin-trade-craft/pkg/redis"
)

const cachePrefix = "ftc"

// app holds the process-wide collaborators every command shares
type app struct {
	cfg      *config.Config
	pipeline *pipelineconfig.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	cache    *redis.Cache
	marks    watermark.Store
	registry *registry.Repository
}

// bootstrap loads configuration and connects to Postgres and (optionally)
// Redis. Redis being unreachable downgrades to no cache and no shared quota.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	log := logger.New(cfg)

	path := cfg.PipelineConfigPath
	if configFile != "" {
		path = configFile
	}
	pipeline, err := pipelineconfig.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc = redis.Disabled()
	}

	return &app{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log,
		db:       db,
		redis:    rc,
		cache:    redis.NewCache(rc, cachePrefix),
		marks:    watermark.NewPostgresStore(db.Pool),
		registry: registry.NewRepository(db.Pool),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}

// marketData builds the provider client: no in-process retry, calls paced
// to the configured per-minute quota and, with Redis, a quota shared by
// every process.
func (a *app) marketData() *alphavantage.Client {
	md := a.cfg.MarketData
	hc := httputil.New(a.log, md.Timeout).
		DisableRetry().
		WithPacer(a.cfg.MarketDataInterval())
	if a.redis.Enabled() {
		hc = hc.WithRateLimiter(redis.NewRateLimiter(a.redis, cachePrefix), redis.MarketDataRateLimit(md.CallsPerMinute))
	}
	return alphavantage.NewClient(hc, md.BaseURL, md.APIKey, a.log)
}

func (a *app) syncer() *registry.Syncer {
	return registry.NewSyncer(a.marketData(), a.registry, a.log)
}

func (a *app) extractor() *extract.Extractor {
	return extract.New(a.marketData(), extract.NewRepository(a.db.Pool), a.marks, a.log)
}

func (a *app) featureRunner() *features.Runner {
	fc := a.pipeline.Features
	repo := features.NewRepository(a.db.Pool)
	t := features.NewTransformer(fc, a.pipeline.FeatureVersion())
	return features.NewRunner(t, fc.Window, repo, repo, a.registry, a.marks, a.log)
}

func (a *app) signalGenerator() (*signals.Generator, error) {
	strategies, err := signals.NewRegistry(a.pipeline).Select(a.pipeline.Signals.Strategies)
	if err != nil {
		return nil, err
	}
	return signals.NewGenerator(strategies, a.pipeline.Signals.FrameSize,
		features.NewRepository(a.db.Pool), signals.NewRepository(a.db.Pool),
		a.registry, a.marks, a.log), nil
}

func (a *app) backtestLoader() *backtest.Loader {
	return backtest.NewLoader(a.db.Pool, signals.NewRepository(a.db.Pool))
}

func (a *app) scoringRepo() *scoring.Repository {
	return scoring.NewRepository(a.db.Pool)
}

func (a *app) monitor() *monitor.Monitor {
	return monitor.NewMonitor(a.db.Pool, a.marks, a.cache, a.log)
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM, so a
// sweep stops between entities instead of mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
