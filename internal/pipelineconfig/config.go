package pipelineconfig

// Config holds the tunables of every pipeline stage. Hardcoded thresholds
// from earlier research (RSI 30/70, 2% deadband, 60 day cooldown, 45 day
// publication lag) live here as defaults, never as constants in code.
type Config struct {
	Watermark WatermarkConfig `yaml:"watermark" json:"watermark"`
	Features  FeatureConfig   `yaml:"features" json:"features"`
	Signals   SignalConfig    `yaml:"signals" json:"signals"`
	Backtest  BacktestConfig  `yaml:"backtest" json:"backtest"`
	Scoring   ScoringConfig   `yaml:"scoring" json:"scoring"`
	Execution ExecutionConfig `yaml:"execution" json:"execution"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
}

// WatermarkConfig controls work selection
type WatermarkConfig struct {
	DefaultStalenessHours int `yaml:"default_staleness_hours" json:"default_staleness_hours"`
	// StalenessHours overrides the default per dataset group
	StalenessHours map[string]int `yaml:"staleness_hours" json:"staleness_hours"`
	// Quarterly gap rule: a quarter is expected ReportingLagDays after it
	// ends, and a missing one is rechecked at most every RecheckIntervalHours.
	ReportingLagDays     int `yaml:"reporting_lag_days" json:"reporting_lag_days"`
	RecheckIntervalHours int `yaml:"recheck_interval_hours" json:"recheck_interval_hours"`
}

// FeatureConfig is the versioned indicator and label set
type FeatureConfig struct {
	Window          int     `yaml:"window" json:"window"`
	SMAPeriods      []int   `yaml:"sma_periods" json:"sma_periods"`
	EMAPeriods      []int   `yaml:"ema_periods" json:"ema_periods"`
	EMAFast         int     `yaml:"ema_fast" json:"ema_fast"`
	EMASlow         int     `yaml:"ema_slow" json:"ema_slow"`
	RSIPeriods      []int   `yaml:"rsi_periods" json:"rsi_periods"`
	RSIOversold     float64 `yaml:"rsi_oversold" json:"rsi_oversold"`
	RSIOverbought   float64 `yaml:"rsi_overbought" json:"rsi_overbought"`
	MACDFast        int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow        int     `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal      int     `yaml:"macd_signal" json:"macd_signal"`
	ROCPeriods      []int   `yaml:"roc_periods" json:"roc_periods"`
	WilliamsPeriod  int     `yaml:"williams_period" json:"williams_period"`
	ATRPeriods      []int   `yaml:"atr_periods" json:"atr_periods"`
	BollingerPeriod int     `yaml:"bollinger_period" json:"bollinger_period"`
	BollingerStdDev float64 `yaml:"bollinger_stddev" json:"bollinger_stddev"`
	CMFPeriod       int     `yaml:"cmf_period" json:"cmf_period"`
	VolumePeriods   []int   `yaml:"volume_periods" json:"volume_periods"`
	Horizons        []int   `yaml:"horizons" json:"horizons"`
	Deadband        float64 `yaml:"deadband" json:"deadband"`
}

// SignalConfig selects strategies and their thresholds
type SignalConfig struct {
	Strategies         []string `yaml:"strategies" json:"strategies"`
	RSIPeriod          int      `yaml:"rsi_period" json:"rsi_period"`
	WilliamsOversold   float64  `yaml:"williams_oversold" json:"williams_oversold"`
	WilliamsOverbought float64  `yaml:"williams_overbought" json:"williams_overbought"`
	// FrameSize is how many feature rows one evaluation reads per entity
	FrameSize int `yaml:"frame_size" json:"frame_size"`
}

// BacktestConfig controls the replay simulation
type BacktestConfig struct {
	CooldownDays   int     `yaml:"cooldown_days" json:"cooldown_days"`
	PositionSize   float64 `yaml:"position_size" json:"position_size"`
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"`
}

// ScoringConfig controls classifier scoring and ranking
type ScoringConfig struct {
	PublicationLagDays int            `yaml:"publication_lag_days" json:"publication_lag_days"`
	ModelPath          string         `yaml:"model_path" json:"model_path"`
	TopN               int            `yaml:"top_n" json:"top_n"`
	Weights            ScoringWeights `yaml:"weights" json:"weights"`
}

// ScoringWeights weight the composite score. They must sum to 1.
type ScoringWeights struct {
	Probability float64 `yaml:"probability" json:"probability"`
	Strength    float64 `yaml:"strength" json:"strength"`
	Quality     float64 `yaml:"quality" json:"quality"`
}

// ExecutionConfig holds broker risk limits
type ExecutionConfig struct {
	MaxPositions   int     `yaml:"max_positions" json:"max_positions"`
	MaxPositionPct float64 `yaml:"max_position_pct" json:"max_position_pct"`
	DryRun         bool    `yaml:"dry_run" json:"dry_run"`
}

// ScheduleConfig holds cron expressions (with seconds) for the daemon
type ScheduleConfig struct {
	RegistrySync    string `yaml:"registry_sync" json:"registry_sync"`
	Extraction      string `yaml:"extraction" json:"extraction"`
	Features        string `yaml:"features" json:"features"`
	Signals         string `yaml:"signals" json:"signals"`
	ExtractionLimit int    `yaml:"extraction_limit" json:"extraction_limit"`
}

// Default returns the shipped configuration
func Default() *Config {
	return &Config{
		Watermark: WatermarkConfig{
			DefaultStalenessHours: 24,
			StalenessHours: map[string]int{
				"balance_sheet":    24 * 30,
				"income_statement": 24 * 30,
				"cash_flow":        24 * 30,
				"earnings":         24 * 30,
				"company_overview": 24 * 7,
			},
			ReportingLagDays:     45,
			RecheckIntervalHours: 24 * 7,
		},
		Features: FeatureConfig{
			Window:          250,
			SMAPeriods:      []int{5, 10, 20, 50},
			EMAPeriods:      []int{12, 26, 55},
			EMAFast:         12,
			EMASlow:         26,
			RSIPeriods:      []int{14, 21},
			RSIOversold:     30,
			RSIOverbought:   70,
			MACDFast:        12,
			MACDSlow:        26,
			MACDSignal:      9,
			ROCPeriods:      []int{10, 20},
			WilliamsPeriod:  14,
			ATRPeriods:      []int{14, 20},
			BollingerPeriod: 20,
			BollingerStdDev: 2,
			CMFPeriod:       20,
			VolumePeriods:   []int{10, 20},
			Horizons:        []int{1, 5, 10, 20, 40},
			Deadband:        0.02,
		},
		Signals: SignalConfig{
			Strategies: []string{
				"rsi_reversal",
				"macd_crossover",
				"ema_crossover",
				"bollinger_reversion",
				"williams_r_reversal",
			},
			RSIPeriod:          14,
			WilliamsOversold:   -80,
			WilliamsOverbought: -20,
			FrameSize:          250,
		},
		Backtest: BacktestConfig{
			CooldownDays:   60,
			PositionSize:   1000,
			CommissionRate: 0,
		},
		Scoring: ScoringConfig{
			PublicationLagDays: 45,
			TopN:               20,
			Weights: ScoringWeights{
				Probability: 0.5,
				Strength:    0.3,
				Quality:     0.2,
			},
		},
		Execution: ExecutionConfig{
			MaxPositions:   10,
			MaxPositionPct: 0.05,
			DryRun:         true,
		},
		Schedule: ScheduleConfig{
			RegistrySync:    "0 0 6 * * 1-5",
			Extraction:      "0 30 18 * * 1-5",
			Features:        "0 30 21 * * 1-5",
			Signals:         "0 0 22 * * 1-5",
			ExtractionLimit: 500,
		},
	}
}
