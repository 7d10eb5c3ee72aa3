package contracts

import "time"

// PriceBar is one adjusted daily OHLCV bar
type PriceBar struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        float64   `json:"volume"`
}

// Adjusted rescales the bar onto the adjusted-close basis: prices by
// AdjustedClose/Close and volume by the inverse, so a split is neither a
// price gap nor a volume spike. Bars without a usable adjusted close are
// returned unchanged.
func (b PriceBar) Adjusted() PriceBar {
	if b.Close <= 0 || b.AdjustedClose <= 0 || b.AdjustedClose == b.Close {
		return b
	}
	f := b.AdjustedClose / b.Close
	b.Open *= f
	b.High *= f
	b.Low *= f
	b.Close = b.AdjustedClose
	b.Volume /= f
	return b
}

// FeatureRow is the derived feature vector of one entity on one date.
// Labels look ahead of Date by construction and must only be used as
// training targets, never as model inputs.
type FeatureRow struct {
	SymbolID int64               `json:"symbol_id"`
	Date     time.Time           `json:"date"`
	Version  string              `json:"version"`
	Close    float64             `json:"close"`
	Features map[string]*float64 `json:"features"`
	Labels   map[string]*float64 `json:"labels"`
}

// Value returns the named input feature, reporting false when null or absent
func (r FeatureRow) Value(name string) (float64, bool) {
	v, ok := r.Features[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// SignalEvent is one strategy decision keyed by (entity, date, strategy)
type SignalEvent struct {
	SymbolID int64     `json:"symbol_id"`
	Date     time.Time `json:"date"`
	Strategy string    `json:"strategy"`
	Buy      bool      `json:"buy"`
	Sell     bool      `json:"sell"`
	Strength float64   `json:"strength"`
}
