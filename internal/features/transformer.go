// Package features derives technical indicators and forward-return labels
// from daily price bars. Every indicator is computed over one entity's own
// ascending series, so no value ever mixes two symbols.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

// Transformer turns bars into feature rows for one feature version
type Transformer struct {
	cfg     pipelineconfig.FeatureConfig
	version string
}

// NewTransformer creates a Transformer
func NewTransformer(cfg pipelineconfig.FeatureConfig, version string) *Transformer {
	return &Transformer{cfg: cfg, version: version}
}

// Version returns the stamp written on every row
func (t *Transformer) Version() string { return t.version }

// Warmup is the number of leading bars consumed before the first row
func (t *Transformer) Warmup() int {
	return t.cfg.MaxLookback() - 1
}

// MinBars is the shortest history that yields at least one row
func (t *Transformer) MinBars() int {
	return t.cfg.MaxLookback()
}

type series struct {
	open, high, low, close, volume []float64
}

// toSeries puts bars on the adjusted basis the backtest fills against
func toSeries(bars []contracts.PriceBar) series {
	s := series{
		open:   make([]float64, len(bars)),
		high:   make([]float64, len(bars)),
		low:    make([]float64, len(bars)),
		close:  make([]float64, len(bars)),
		volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		b = b.Adjusted()
		s.open[i], s.high[i], s.low[i], s.close[i], s.volume[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	return s
}

// Transform computes rows for the bars after warm-up. Bars must belong to
// one entity; they are sorted by date first.
func (t *Transformer) Transform(symbolID int64, bars []contracts.PriceBar) ([]contracts.FeatureRow, error) {
	if len(bars) < t.MinBars() {
		return nil, nil
	}

	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("duplicate bar on %s", sorted[i].Date.Format("2006-01-02"))
		}
	}

	s := toSeries(sorted)
	cols := t.inputs(s)
	labels := t.labels(s.close)

	start := t.Warmup()
	rows := make([]contracts.FeatureRow, 0, len(sorted)-start)
	for i := start; i < len(sorted); i++ {
		row := contracts.FeatureRow{
			SymbolID: symbolID,
			Date:     sorted[i].Date,
			Version:  t.version,
			Close:    s.close[i],
			Features: make(map[string]*float64, len(cols)),
			Labels:   make(map[string]*float64, len(labels)),
		}
		for _, c := range cols {
			row.Features[c.name] = c.at(i)
		}
		for _, c := range labels {
			row.Labels[c.name] = c.at(i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// column is one named output; at converts point i to a nullable value
type column struct {
	name string
	at   func(i int) *float64
}

func valueColumn(name string, x []float64) column {
	return column{name: name, at: func(i int) *float64 { return value(x[i]) }}
}

func ratioColumn(name string, a, b []float64) column {
	return column{name: name, at: func(i int) *float64 { return SafeDivide(a[i], b[i]) }}
}

func (t *Transformer) inputs(s series) []column {
	cfg := t.cfg
	c := s.close
	cols := make([]column, 0, 64)

	// trend
	for _, p := range cfg.SMAPeriods {
		sma := SMA(c, p)
		cols = append(cols,
			valueColumn(fmt.Sprintf("sma_%d", p), sma),
			ratioColumn(fmt.Sprintf("price_to_sma_%d", p), c, sma))
	}
	for _, p := range cfg.EMAPeriods {
		ema := EMA(c, p)
		cols = append(cols,
			valueColumn(fmt.Sprintf("ema_%d", p), ema),
			ratioColumn(fmt.Sprintf("price_to_ema_%d", p), c, ema))
	}
	fast, slow := EMA(c, cfg.EMAFast), EMA(c, cfg.EMASlow)
	cols = append(cols,
		column{"ema_cross_bullish", func(i int) *float64 {
			return flag(finite(fast[i]) && finite(slow[i]), fast[i] > slow[i])
		}},
		ratioColumn("ema_fast_slow_ratio", fast, slow))

	// momentum
	for _, p := range cfg.RSIPeriods {
		rsi := RSI(c, p)
		cols = append(cols,
			valueColumn(fmt.Sprintf("rsi_%d", p), rsi),
			column{fmt.Sprintf("rsi_%d_oversold", p), func(i int) *float64 {
				return flag(finite(rsi[i]), rsi[i] < cfg.RSIOversold)
			}},
			column{fmt.Sprintf("rsi_%d_overbought", p), func(i int) *float64 {
				return flag(finite(rsi[i]), rsi[i] > cfg.RSIOverbought)
			}})
	}
	line, sig, hist := MACD(c, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	cols = append(cols,
		valueColumn("macd", line),
		valueColumn("macd_signal", sig),
		valueColumn("macd_hist", hist),
		column{"macd_bullish", func(i int) *float64 {
			return flag(finite(line[i]) && finite(sig[i]), line[i] > sig[i])
		}})
	for _, p := range cfg.ROCPeriods {
		cols = append(cols, valueColumn(fmt.Sprintf("roc_%d", p), ROC(c, p)))
	}
	cols = append(cols, valueColumn(fmt.Sprintf("williams_r_%d", cfg.WilliamsPeriod),
		WilliamsR(s.high, s.low, c, cfg.WilliamsPeriod)))

	// volatility
	for _, p := range cfg.ATRPeriods {
		atr := ATR(s.high, s.low, c, p)
		cols = append(cols,
			valueColumn(fmt.Sprintf("atr_%d", p), atr),
			ratioColumn(fmt.Sprintf("atr_%d_pct", p), atr, c))
	}
	upper, middle, lower := Bollinger(c, cfg.BollingerPeriod, cfg.BollingerStdDev)
	width := make([]float64, len(c))
	fromLower := make([]float64, len(c))
	for i := range c {
		width[i] = upper[i] - lower[i]
		fromLower[i] = c[i] - lower[i]
	}
	cols = append(cols,
		valueColumn("bb_upper", upper),
		valueColumn("bb_middle", middle),
		valueColumn("bb_lower", lower),
		ratioColumn("bb_width", width, middle),
		ratioColumn("bb_position", fromLower, width))

	// volume
	cols = append(cols,
		valueColumn("obv", OBV(c, s.volume)),
		valueColumn(fmt.Sprintf("cmf_%d", cfg.CMFPeriod), CMF(s.high, s.low, c, s.volume, cfg.CMFPeriod)),
		valueColumn("ad_line", ADLine(s.high, s.low, c, s.volume)))
	for _, p := range cfg.VolumePeriods {
		vsma := SMA(s.volume, p)
		cols = append(cols,
			valueColumn(fmt.Sprintf("volume_sma_%d", p), vsma),
			ratioColumn(fmt.Sprintf("volume_ratio_%d", p), s.volume, vsma))
	}

	return cols
}

// labels look ahead by construction. They are only ever written to the
// Labels map of a row.
func (t *Transformer) labels(c []float64) []column {
	cols := make([]column, 0, 4*len(t.cfg.Horizons))
	deadband := t.cfg.Deadband

	for _, h := range t.cfg.Horizons {
		ret := nanSeries(len(c))
		logRet := nanSeries(len(c))
		for i := 0; i+h < len(c); i++ {
			ret[i] = ratio(c[i+h]-c[i], c[i])
			if c[i] > 0 && c[i+h] > 0 {
				logRet[i] = math.Log(c[i+h] / c[i])
			}
		}

		cols = append(cols,
			valueColumn(fmt.Sprintf("fwd_return_%d", h), ret),
			valueColumn(fmt.Sprintf("fwd_log_return_%d", h), logRet),
			column{fmt.Sprintf("fwd_direction_%d", h), func(i int) *float64 {
				return flag(finite(ret[i]), ret[i] > 0)
			}},
			column{fmt.Sprintf("fwd_class_%d", h), func(i int) *float64 {
				if !finite(ret[i]) {
					return nil
				}
				v := 0.0
				switch {
				case ret[i] > deadband:
					v = 1
				case ret[i] < -deadband:
					v = -1
				}
				return &v
			}})
	}
	return cols
}

// FeatureNames lists the input columns the transformer emits, sorted
func (t *Transformer) FeatureNames() []string {
	return t.names(t.inputs(toSeries(nil)))
}

// LabelNames lists the label columns the transformer emits, sorted
func (t *Transformer) LabelNames() []string {
	return t.names(t.labels(nil))
}

func (t *Transformer) names(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	sort.Strings(out)
	return out
}
