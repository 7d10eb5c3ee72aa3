package features

import "math"

// Series functions take one entity's ascending series and return a slice of
// the same length. NaN marks points where the indicator is not yet defined.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average over period points
func SMA(x []float64, period int) []float64 {
	out := nanSeries(len(x))
	if period <= 0 {
		return out
	}
	var sum float64
	valid := 0
	for i, v := range x {
		if finite(v) {
			sum += v
			valid++
		}
		if i >= period {
			if old := x[i-period]; finite(old) {
				sum -= old
				valid--
			}
		}
		if i >= period-1 && valid == period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is the exponential moving average seeded with the SMA of the first
// period finite points. A NaN input after seeding yields NaN and leaves the
// state unchanged.
func EMA(x []float64, period int) []float64 {
	out := nanSeries(len(x))
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)

	seeded := false
	run, sum := 0, 0.0
	var ema float64
	for i, v := range x {
		if !seeded {
			if !finite(v) {
				run, sum = 0, 0
				continue
			}
			run++
			sum += v
			if run == period {
				ema = sum / float64(period)
				out[i] = ema
				seeded = true
			}
			continue
		}
		if !finite(v) {
			continue
		}
		ema = v*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// RSI is Wilder's relative strength index
func RSI(close []float64, period int) []float64 {
	out := nanSeries(len(close))
	if period <= 0 || len(close) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(close); i++ {
		d := close[i] - close[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if !finite(avgGain) || !finite(avgLoss) {
		return math.NaN()
	}
	if avgLoss < nearZero {
		if avgGain < nearZero {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, its signal line and the histogram
func MACD(close []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f := EMA(close, fast)
	s := EMA(close, slow)
	line = nanSeries(len(close))
	for i := range close {
		line[i] = f[i] - s[i]
	}
	sig = EMA(line, signal)
	hist = nanSeries(len(close))
	for i := range close {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// ROC is the percent rate of change over period points
func ROC(close []float64, period int) []float64 {
	out := nanSeries(len(close))
	for i := period; i < len(close); i++ {
		out[i] = ratio(close[i]-close[i-period], close[i-period]) * 100
	}
	return out
}

// WilliamsR is Williams %R in [-100, 0]
func WilliamsR(high, low, close []float64, period int) []float64 {
	out := nanSeries(len(close))
	for i := period - 1; i < len(close); i++ {
		hh, ll := math.Inf(-1), math.Inf(1)
		for j := i - period + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		out[i] = ratio(hh-close[i], hh-ll) * -100
	}
	return out
}

// TrueRange is defined from the second bar on
func TrueRange(high, low, close []float64) []float64 {
	out := nanSeries(len(close))
	for i := 1; i < len(close); i++ {
		out[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}
	return out
}

// ATR is Wilder's average true range
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	out := nanSeries(len(close))
	if period <= 0 || len(close) <= period {
		return out
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr
	for i := period + 1; i < len(close); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// StdDev is the rolling population standard deviation
func StdDev(x []float64, period int) []float64 {
	mean := SMA(x, period)
	out := nanSeries(len(x))
	for i := period - 1; i < len(x); i++ {
		if !finite(mean[i]) {
			continue
		}
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := x[j] - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out
}

// Bollinger returns the upper, middle and lower bands
func Bollinger(close []float64, period int, k float64) (upper, middle, lower []float64) {
	middle = SMA(close, period)
	sd := StdDev(close, period)
	upper = nanSeries(len(close))
	lower = nanSeries(len(close))
	for i := range close {
		upper[i] = middle[i] + k*sd[i]
		lower[i] = middle[i] - k*sd[i]
	}
	return upper, middle, lower
}

// OBV is on-balance volume, starting at zero on the first bar
func OBV(close, volume []float64) []float64 {
	out := nanSeries(len(close))
	if len(close) == 0 {
		return out
	}
	obv := 0.0
	out[0] = 0
	for i := 1; i < len(close); i++ {
		switch {
		case close[i] > close[i-1]:
			obv += volume[i]
		case close[i] < close[i-1]:
			obv -= volume[i]
		}
		out[i] = obv
	}
	return out
}

// moneyFlowMultiplier is ((c-l)-(h-c))/(h-l), zero on a flat bar
func moneyFlowMultiplier(h, l, c float64) float64 {
	if h-l < nearZero {
		return 0
	}
	return ((c - l) - (h - c)) / (h - l)
}

// ADLine is the accumulation/distribution line
func ADLine(high, low, close, volume []float64) []float64 {
	out := nanSeries(len(close))
	ad := 0.0
	for i := range close {
		ad += moneyFlowMultiplier(high[i], low[i], close[i]) * volume[i]
		out[i] = ad
	}
	return out
}

// CMF is Chaikin money flow over period bars
func CMF(high, low, close, volume []float64, period int) []float64 {
	out := nanSeries(len(close))
	for i := period - 1; i < len(close); i++ {
		var mfv, vol float64
		for j := i - period + 1; j <= i; j++ {
			mfv += moneyFlowMultiplier(high[j], low[j], close[j]) * volume[j]
			vol += volume[j]
		}
		out[i] = ratio(mfv, vol)
	}
	return out
}
