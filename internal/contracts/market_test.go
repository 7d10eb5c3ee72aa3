package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceBar_Adjusted(t *testing.T) {
	tests := []struct {
		name string
		bar  PriceBar
		want PriceBar
	}{
		{
			name: "2:1 split",
			bar:  PriceBar{Open: 98, High: 102, Low: 96, Close: 100, AdjustedClose: 50, Volume: 1000},
			want: PriceBar{Open: 49, High: 51, Low: 48, Close: 50, AdjustedClose: 50, Volume: 2000},
		},
		{
			name: "already adjusted",
			bar:  PriceBar{Open: 9, High: 11, Low: 8, Close: 10, AdjustedClose: 10, Volume: 5},
			want: PriceBar{Open: 9, High: 11, Low: 8, Close: 10, AdjustedClose: 10, Volume: 5},
		},
		{
			name: "missing adjusted close",
			bar:  PriceBar{Open: 9, High: 11, Low: 8, Close: 10, Volume: 5},
			want: PriceBar{Open: 9, High: 11, Low: 8, Close: 10, Volume: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.bar.Adjusted()
			assert.InDelta(t, tt.want.Open, got.Open, 1e-9)
			assert.InDelta(t, tt.want.High, got.High, 1e-9)
			assert.InDelta(t, tt.want.Low, got.Low, 1e-9)
			assert.InDelta(t, tt.want.Close, got.Close, 1e-9)
			assert.InDelta(t, tt.want.Volume, got.Volume, 1e-9)
		})
	}
}
