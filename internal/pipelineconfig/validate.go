package pipelineconfig

import (
	"fmt"
	"math"

	"github.com/robfig/cron/v3"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

// ValidationError is a configuration value that makes the pipeline unsafe
// to run.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// minRecheckIntervalHours keeps the quarterly gap rule from degenerating into
// a bare "always due" check.
const minRecheckIntervalHours = 24

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Watermark ===
	w := cfg.Watermark
	if w.DefaultStalenessHours <= 0 {
		return ValidationError{"watermark.default_staleness_hours", "must be > 0"}
	}
	for group, hours := range w.StalenessHours {
		if _, err := contracts.ParseDatasetGroup(group); err != nil {
			return ValidationError{"watermark.staleness_hours", err.Error()}
		}
		if hours <= 0 {
			return ValidationError{"watermark.staleness_hours." + group, "must be > 0"}
		}
	}
	if w.ReportingLagDays < 0 {
		return ValidationError{"watermark.reporting_lag_days", "must be >= 0"}
	}
	if w.RecheckIntervalHours < minRecheckIntervalHours {
		return ValidationError{"watermark.recheck_interval_hours", fmt.Sprintf("must be >= %d", minRecheckIntervalHours)}
	}

	// === Features ===
	if err := validateFeatures(cfg.Features); err != nil {
		return err
	}

	// === Signals ===
	if len(cfg.Signals.Strategies) == 0 {
		return ValidationError{"signals.strategies", "at least one strategy required"}
	}
	if !containsInt(cfg.Features.RSIPeriods, cfg.Signals.RSIPeriod) {
		return ValidationError{"signals.rsi_period", "must be one of features.rsi_periods"}
	}
	if cfg.Signals.WilliamsOversold >= cfg.Signals.WilliamsOverbought ||
		cfg.Signals.WilliamsOversold < -100 || cfg.Signals.WilliamsOverbought > 0 {
		return ValidationError{"signals.williams", "need -100 <= oversold < overbought <= 0"}
	}
	if cfg.Signals.FrameSize < 2 {
		return ValidationError{"signals.frame_size", "must be >= 2"}
	}

	// === Backtest ===
	if cfg.Backtest.CooldownDays < 0 {
		return ValidationError{"backtest.cooldown_days", "must be >= 0"}
	}
	if cfg.Backtest.PositionSize <= 0 {
		return ValidationError{"backtest.position_size", "must be > 0"}
	}
	if cfg.Backtest.CommissionRate < 0 || cfg.Backtest.CommissionRate >= 0.1 {
		return ValidationError{"backtest.commission_rate", "must be in [0, 0.1)"}
	}

	// === Scoring ===
	if cfg.Scoring.PublicationLagDays < 0 {
		return ValidationError{"scoring.publication_lag_days", "must be >= 0"}
	}
	if cfg.Scoring.TopN <= 0 {
		return ValidationError{"scoring.top_n", "must be > 0"}
	}
	sw := cfg.Scoring.Weights
	if sw.Probability < 0 || sw.Strength < 0 || sw.Quality < 0 {
		return ValidationError{"scoring.weights", "must be non-negative"}
	}
	if math.Abs(sw.Probability+sw.Strength+sw.Quality-1.0) > 1e-6 {
		return ValidationError{"scoring.weights", "must sum to 1.0"}
	}

	// === Execution ===
	if cfg.Execution.MaxPositions <= 0 {
		return ValidationError{"execution.max_positions", "must be > 0"}
	}
	if cfg.Execution.MaxPositionPct <= 0 || cfg.Execution.MaxPositionPct > 1 {
		return ValidationError{"execution.max_position_pct", "must be in (0, 1]"}
	}

	// === Schedule ===
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for field, expr := range map[string]string{
		"schedule.registry_sync": cfg.Schedule.RegistrySync,
		"schedule.extraction":    cfg.Schedule.Extraction,
		"schedule.features":      cfg.Schedule.Features,
		"schedule.signals":       cfg.Schedule.Signals,
	} {
		if _, err := parser.Parse(expr); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	return nil
}

func validateFeatures(f FeatureConfig) error {
	for field, periods := range map[string][]int{
		"features.sma_periods":    f.SMAPeriods,
		"features.ema_periods":    f.EMAPeriods,
		"features.rsi_periods":    f.RSIPeriods,
		"features.roc_periods":    f.ROCPeriods,
		"features.atr_periods":    f.ATRPeriods,
		"features.volume_periods": f.VolumePeriods,
		"features.horizons":       f.Horizons,
	} {
		if len(periods) == 0 {
			return ValidationError{field, "must not be empty"}
		}
		for _, p := range periods {
			if p <= 0 {
				return ValidationError{field, "periods must be > 0"}
			}
		}
	}

	if f.EMAFast <= 0 || f.EMAFast >= f.EMASlow {
		return ValidationError{"features.ema_fast", "need 0 < ema_fast < ema_slow"}
	}
	if f.MACDFast <= 0 || f.MACDFast >= f.MACDSlow || f.MACDSignal <= 0 {
		return ValidationError{"features.macd", "need 0 < fast < slow and signal > 0"}
	}
	if f.RSIOversold <= 0 || f.RSIOversold >= f.RSIOverbought || f.RSIOverbought >= 100 {
		return ValidationError{"features.rsi_thresholds", "need 0 < oversold < overbought < 100"}
	}
	if f.WilliamsPeriod <= 0 || f.BollingerPeriod <= 1 || f.CMFPeriod <= 0 {
		return ValidationError{"features.periods", "williams, bollinger and cmf periods must be positive"}
	}
	if f.BollingerStdDev <= 0 {
		return ValidationError{"features.bollinger_stddev", "must be > 0"}
	}
	if f.Deadband < 0 || f.Deadband >= 1 {
		return ValidationError{"features.deadband", "must be in [0, 1)"}
	}

	if need := f.MaxLookback() + f.MaxHorizon(); f.Window < need {
		return ValidationError{
			"features.window",
			fmt.Sprintf("window %d < longest lookback %d + longest horizon %d", f.Window, f.MaxLookback(), f.MaxHorizon()),
		}
	}

	return nil
}

// MaxLookback returns the longest history any input indicator needs
func (f FeatureConfig) MaxLookback() int {
	longest := maxInt(f.SMAPeriods...)
	longest = maxInt(longest, maxInt(f.EMAPeriods...), f.EMASlow)
	longest = maxInt(longest, maxInt(f.RSIPeriods...)+1)
	longest = maxInt(longest, f.MACDSlow+f.MACDSignal)
	longest = maxInt(longest, maxInt(f.ROCPeriods...)+1)
	longest = maxInt(longest, f.WilliamsPeriod, maxInt(f.ATRPeriods...)+1)
	longest = maxInt(longest, f.BollingerPeriod, f.CMFPeriod, maxInt(f.VolumePeriods...))
	return longest
}

// MaxHorizon returns the longest forward label horizon
func (f FeatureConfig) MaxHorizon() int {
	return maxInt(f.Horizons...)
}

func maxInt(values ...int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
