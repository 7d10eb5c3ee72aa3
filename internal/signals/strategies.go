package signals

import (
	"fmt"
	"math"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
)

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// pair walks consecutive rows where both have the named feature defined
func pair(frame Frame, name string, fn func(prev, cur float64, row contracts.FeatureRow)) {
	for i := 1; i < len(frame.Rows); i++ {
		prev, ok1 := frame.Rows[i-1].Value(name)
		cur, ok2 := frame.Rows[i].Value(name)
		if ok1 && ok2 {
			fn(prev, cur, frame.Rows[i])
		}
	}
}

func event(frame Frame, row contracts.FeatureRow, strategy string, buy bool, strength float64) contracts.SignalEvent {
	return contracts.SignalEvent{
		SymbolID: frame.SymbolID,
		Date:     row.Date,
		Strategy: strategy,
		Buy:      buy,
		Sell:     !buy,
		Strength: clamp01(strength),
	}
}

// RSIReversal buys when RSI climbs back above the oversold level and sells
// when it falls back below the overbought level.
type RSIReversal struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func (RSIReversal) Name() string { return "rsi_reversal" }

func (s RSIReversal) Evaluate(frame Frame) []contracts.SignalEvent {
	var out []contracts.SignalEvent
	pair(frame, fmt.Sprintf("rsi_%d", s.Period), func(prev, cur float64, row contracts.FeatureRow) {
		switch {
		case prev < s.Oversold && cur >= s.Oversold:
			out = append(out, event(frame, row, s.Name(), true, (cur-prev)/s.Oversold))
		case prev > s.Overbought && cur <= s.Overbought:
			out = append(out, event(frame, row, s.Name(), false, (prev-cur)/(100-s.Overbought)))
		}
	})
	return out
}

// MACDCrossover trades the MACD histogram changing sign
type MACDCrossover struct{}

func (MACDCrossover) Name() string { return "macd_crossover" }

func (s MACDCrossover) Evaluate(frame Frame) []contracts.SignalEvent {
	var out []contracts.SignalEvent
	pair(frame, "macd_hist", func(prev, cur float64, row contracts.FeatureRow) {
		// histogram move as a percent of price
		strength := 0.0
		if row.Close > 0 {
			strength = math.Abs(cur-prev) / row.Close * 100
		}
		switch {
		case prev <= 0 && cur > 0:
			out = append(out, event(frame, row, s.Name(), true, strength))
		case prev >= 0 && cur < 0:
			out = append(out, event(frame, row, s.Name(), false, strength))
		}
	})
	return out
}

// EMACrossover trades the fast EMA crossing the slow EMA
type EMACrossover struct{}

func (EMACrossover) Name() string { return "ema_crossover" }

func (s EMACrossover) Evaluate(frame Frame) []contracts.SignalEvent {
	var out []contracts.SignalEvent
	pair(frame, "ema_cross_bullish", func(prev, cur float64, row contracts.FeatureRow) {
		if prev == cur {
			return
		}
		strength := 0.0
		if r, ok := row.Value("ema_fast_slow_ratio"); ok {
			strength = math.Abs(r-1) * 50
		}
		out = append(out, event(frame, row, s.Name(), cur > prev, strength))
	})
	return out
}

// BollingerReversion buys when price re-enters the bands from below and
// sells when it re-enters from above.
type BollingerReversion struct{}

func (BollingerReversion) Name() string { return "bollinger_reversion" }

func (s BollingerReversion) Evaluate(frame Frame) []contracts.SignalEvent {
	var out []contracts.SignalEvent
	pair(frame, "bb_position", func(prev, cur float64, row contracts.FeatureRow) {
		switch {
		case prev < 0 && cur >= 0:
			out = append(out, event(frame, row, s.Name(), true, cur-prev))
		case prev > 1 && cur <= 1:
			out = append(out, event(frame, row, s.Name(), false, prev-cur))
		}
	})
	return out
}

// WilliamsRReversal is the Williams %R analogue of RSIReversal
type WilliamsRReversal struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func (WilliamsRReversal) Name() string { return "williams_r_reversal" }

func (s WilliamsRReversal) Evaluate(frame Frame) []contracts.SignalEvent {
	var out []contracts.SignalEvent
	pair(frame, fmt.Sprintf("williams_r_%d", s.Period), func(prev, cur float64, row contracts.FeatureRow) {
		switch {
		case prev < s.Oversold && cur >= s.Oversold:
			out = append(out, event(frame, row, s.Name(), true, (cur-prev)/20))
		case prev > s.Overbought && cur <= s.Overbought:
			out = append(out, event(frame, row, s.Name(), false, (prev-cur)/20))
		}
	})
	return out
}
