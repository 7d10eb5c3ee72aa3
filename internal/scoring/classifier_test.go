package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLinearModel(t *testing.T) {
	m, err := LoadLinearModel("testdata/linear_model.json")
	require.NoError(t, err)
	assert.Equal(t, "lr-2024-06", m.Version())
	assert.Len(t, m.FeatureNames(), 21)
}

func TestLoadLinearModel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{`, "parse model"},
		{"length mismatch", `{"feature_names":["a","b"],"coefficients":[1]}`, "2 feature names but 1 coefficients"},
		{"duplicate", `{"feature_names":["a","a"],"coefficients":[1,2]}`, "duplicate feature"},
		{"empty", `{"feature_names":[],"coefficients":[]}`, "no feature names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := LoadLinearModel(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLinearModel_PredictProba(t *testing.T) {
	m := &LinearModel{Names: []string{"a", "b"}, Coefficients: []float64{2, -1}, Intercept: 0.5}

	probs, err := m.PredictProba([][]float64{{0, 0}, {1, 3}, {-10, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-0.5)), probs[0], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(0.5)), probs[1], 1e-12)
	assert.Less(t, probs[2], 0.001)

	_, err = m.PredictProba([][]float64{{1}})
	assert.Error(t, err)
}
