package pipelineconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

func TestLoadShippedConfig(t *testing.T) {
	cfg, data, err := Load("../../configs/pipeline.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// the shipped file spells out the defaults
	def := Default()
	def.Scoring.ModelPath = "models/signal_classifier.json"
	assert.Equal(t, def, cfg)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("features:\n  windw: 300\n"))
	assert.Error(t, err)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("backtest:\n  cooldown_days: 30\nfeatures:\n  deadband: 0.01\n"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Backtest.CooldownDays)
	assert.Equal(t, 0.01, cfg.Features.Deadband)
	assert.Equal(t, 250, cfg.Features.Window)
}

func TestFeatureWindowSufficiency(t *testing.T) {
	f := Default().Features
	assert.Equal(t, 55, f.MaxLookback())
	assert.Equal(t, 40, f.MaxHorizon())
	assert.Equal(t, 250, f.Window)
	assert.GreaterOrEqual(t, f.Window, f.MaxLookback()+f.MaxHorizon())

	f.Window = 90
	err := validateFeatures(f)
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "features.window", verr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bare gap check", func(c *Config) { c.Watermark.RecheckIntervalHours = 0 }, "watermark.recheck_interval_hours"},
		{"unknown group", func(c *Config) { c.Watermark.StalenessHours["prices"] = 1 }, "watermark.staleness_hours"},
		{"rsi thresholds", func(c *Config) { c.Features.RSIOversold = 80 }, "features.rsi_thresholds"},
		{"ema pair", func(c *Config) { c.Features.EMAFast = 30 }, "features.ema_fast"},
		{"weights sum", func(c *Config) { c.Scoring.Weights.Quality = 0.5 }, "scoring.weights"},
		{"position pct", func(c *Config) { c.Execution.MaxPositionPct = 1.5 }, "execution.max_position_pct"},
		{"cron", func(c *Config) { c.Schedule.Features = "every day" }, "schedule.features"},
		{"rsi period", func(c *Config) { c.Signals.RSIPeriod = 9 }, "signals.rsi_period"},
		{"no strategies", func(c *Config) { c.Signals.Strategies = nil }, "signals.strategies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var verr ValidationError
			require.True(t, errors.As(Validate(cfg), &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestFeatureVersion(t *testing.T) {
	a := Default()
	b := Default()
	assert.Equal(t, a.FeatureVersion(), b.FeatureVersion())
	assert.Len(t, a.FeatureVersion(), len("tf-")+12)

	// unrelated sections do not change the feature version
	b.Backtest.CooldownDays = 10
	assert.Equal(t, a.FeatureVersion(), b.FeatureVersion())

	b.Features.Deadband = 0.03
	assert.NotEqual(t, a.FeatureVersion(), b.FeatureVersion())
}

func TestStaleness(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 720*time.Hour, cfg.Staleness(contracts.GroupBalanceSheet))
	assert.Equal(t, 24*time.Hour, cfg.Staleness(contracts.GroupDailyPrices))
	assert.Equal(t, 7*24*time.Hour, cfg.RecheckInterval())
	assert.Equal(t, 45*24*time.Hour, cfg.ReportingLag())
}

func TestHashDeterministic(t *testing.T) {
	h1, err := Hash(Default())
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}
