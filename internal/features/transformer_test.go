package features

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func syntheticBars(n int) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, n)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/7) + 0.1*float64(i)
		bars[i] = contracts.PriceBar{
			Date:          day0.AddDate(0, 0, i),
			Open:          c - 0.5,
			High:          c + 1,
			Low:           c - 1,
			Close:         c,
			AdjustedClose: c,
			Volume:        1e6 + 1000*float64(i%10),
		}
	}
	return bars
}

func newTransformer() *Transformer {
	cfg := pipelineconfig.Default()
	return NewTransformer(cfg.Features, cfg.FeatureVersion())
}

func TestTransform_InsufficientHistory(t *testing.T) {
	tr := newTransformer()
	rows, err := tr.Transform(1, syntheticBars(tr.MinBars()-1))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// The shipped window leaves every input defined on every emitted row.
func TestTransform_WindowIsSufficient(t *testing.T) {
	tr := newTransformer()
	cfg := pipelineconfig.Default().Features

	rows, err := tr.Transform(1, syntheticBars(cfg.Window))
	require.NoError(t, err)
	require.Len(t, rows, cfg.Window-tr.Warmup())

	for _, row := range rows {
		for name, v := range row.Features {
			require.NotNil(t, v, "%s undefined on %s", name, row.Date.Format("2006-01-02"))
		}
	}

	// the oldest rows carry every label horizon
	for name, v := range rows[0].Labels {
		assert.NotNil(t, v, name)
	}
	assert.GreaterOrEqual(t, len(rows), cfg.MaxHorizon()+1)
}

func TestTransform_LabelsAreSeparateFromInputs(t *testing.T) {
	tr := newTransformer()
	rows, err := tr.Transform(1, syntheticBars(120))
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	for name := range rows[0].Features {
		assert.False(t, strings.HasPrefix(name, "fwd_"), "label %s leaked into inputs", name)
	}
	for name := range rows[0].Labels {
		assert.True(t, strings.HasPrefix(name, "fwd_"), name)
	}

	last := rows[len(rows)-1]
	assert.Nil(t, last.Labels["fwd_return_1"], "no bar after the last one")
	assert.Nil(t, last.Labels["fwd_class_1"])
	assert.NotNil(t, rows[len(rows)-2].Labels["fwd_return_1"])
	assert.Nil(t, rows[len(rows)-40].Labels["fwd_return_40"])
	assert.NotNil(t, rows[len(rows)-41].Labels["fwd_return_40"])
}

// Appending future bars must not change any input already computed.
func TestTransform_NoLookAhead(t *testing.T) {
	tr := newTransformer()
	all := syntheticBars(200)

	past, err := tr.Transform(1, all[:150])
	require.NoError(t, err)

	future := make([]contracts.PriceBar, len(all))
	copy(future, all)
	for i := 150; i < len(future); i++ {
		future[i].Close *= 3
		future[i].High *= 3
		future[i].Low *= 3
	}
	full, err := tr.Transform(1, future)
	require.NoError(t, err)

	for i := range past {
		require.True(t, past[i].Date.Equal(full[i].Date))
		if diff := cmp.Diff(past[i].Features, full[i].Features); diff != "" {
			t.Fatalf("inputs on %s changed with future data (-past +full):\n%s", past[i].Date.Format("2006-01-02"), diff)
		}
	}
}

func TestTransform_ForwardClass(t *testing.T) {
	cfg := pipelineconfig.Default().Features
	cfg.Horizons = []int{1}
	tr := NewTransformer(cfg, "test")

	bars := syntheticBars(cfg.MaxLookback() + 3)
	n := len(bars)
	bars[n-3].Close = 100
	bars[n-2].Close = 101 // +1%: inside the deadband
	bars[n-1].Close = 104 // about +3%

	rows, err := tr.Transform(1, bars)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)

	r := rows[len(rows)-3:]
	assert.Equal(t, 0.0, *r[0].Labels["fwd_class_1"])
	assert.Equal(t, 1.0, *r[0].Labels["fwd_direction_1"])
	assert.Equal(t, 1.0, *r[1].Labels["fwd_class_1"])
	assert.InDelta(t, math.Log(1.01), *r[0].Labels["fwd_log_return_1"], 1e-12)
}

func TestTransform_SortsAndRejectsDuplicates(t *testing.T) {
	tr := newTransformer()
	bars := syntheticBars(100)

	reversed := make([]contracts.PriceBar, len(bars))
	for i := range bars {
		reversed[len(bars)-1-i] = bars[i]
	}
	a, err := tr.Transform(1, bars)
	require.NoError(t, err)
	b, err := tr.Transform(1, reversed)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(a, b))

	bars[10].Date = bars[11].Date
	_, err = tr.Transform(1, bars)
	assert.Error(t, err)
}

func TestTransform_FlatSeriesYieldsNulls(t *testing.T) {
	tr := newTransformer()
	bars := syntheticBars(100)
	for i := range bars {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = 50, 50, 50, 50
	}

	rows, err := tr.Transform(1, bars)
	require.NoError(t, err)
	last := rows[len(rows)-1]

	assert.Nil(t, last.Features["bb_position"], "zero band width")
	assert.Nil(t, last.Features["williams_r_14"], "zero range")
	assert.Equal(t, 0.0, *last.Features["bb_width"])
	assert.Equal(t, 1.0, *last.Features["price_to_sma_20"])
}

func TestFeatureNames(t *testing.T) {
	tr := newTransformer()
	names := tr.FeatureNames()

	assert.Contains(t, names, "rsi_14_oversold")
	assert.Contains(t, names, "macd_hist")
	assert.Contains(t, names, "atr_20_pct")
	assert.Contains(t, names, "volume_ratio_10")
	assert.Contains(t, tr.LabelNames(), "fwd_class_40")

	rows, err := tr.Transform(1, syntheticBars(80))
	require.NoError(t, err)
	assert.Len(t, rows[0].Features, len(names))
}

// A 2:1 split on a flat adjusted series must not look like a price move.
func TestTransform_SplitUsesAdjustedBasis(t *testing.T) {
	tr := newTransformer()
	n := tr.MinBars() + 40
	split := n - 20

	bars := make([]contracts.PriceBar, n)
	for i := range bars {
		raw, vol := 100.0, 1e6
		if i >= split {
			raw, vol = 50, 2e6
		}
		bars[i] = contracts.PriceBar{
			Date:          day0.AddDate(0, 0, i),
			Open:          raw,
			High:          raw,
			Low:           raw,
			Close:         raw,
			AdjustedClose: 50,
			Volume:        vol,
		}
	}

	rows, err := tr.Transform(1, bars)
	require.NoError(t, err)
	byDate := make(map[time.Time]contracts.FeatureRow, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	before := byDate[bars[split-1].Date]
	require.NotNil(t, before.Labels["fwd_return_1"])
	assert.InDelta(t, 0, *before.Labels["fwd_return_1"], 1e-9)
	require.NotNil(t, before.Labels["fwd_class_1"])
	assert.Equal(t, 0.0, *before.Labels["fwd_class_1"])
	assert.Equal(t, 50.0, before.Close)

	on := byDate[bars[split].Date]
	checked := 0
	for name, v := range on.Features {
		switch {
		case strings.HasPrefix(name, "roc_"):
			require.NotNil(t, v, name)
			assert.InDelta(t, 0, *v, 1e-9, name)
			checked++
		case strings.HasPrefix(name, "price_to_sma_"):
			require.NotNil(t, v, name)
			assert.InDelta(t, 1, *v, 1e-9, name)
			checked++
		}
	}
	assert.Positive(t, checked)
}
