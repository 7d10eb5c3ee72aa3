package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Classifier is a pre-trained probability model. Training happens
// elsewhere; only the prediction contract lives here.
type Classifier interface {
	// FeatureNames is the persisted column order of the input vector
	FeatureNames() []string
	// PredictProba returns P(positive) per row
	PredictProba(rows [][]float64) ([]float64, error)
}

// Versioned is implemented by classifiers that carry an artifact version
type Versioned interface {
	Version() string
}

// LinearModel is a logistic regression loaded from a JSON artifact
type LinearModel struct {
	ModelVersion string    `json:"version"`
	Names        []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// LoadLinearModel reads and validates a model artifact
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	if len(m.Names) == 0 {
		return fmt.Errorf("no feature names")
	}
	if len(m.Names) != len(m.Coefficients) {
		return fmt.Errorf("%d feature names but %d coefficients", len(m.Names), len(m.Coefficients))
	}
	seen := make(map[string]bool, len(m.Names))
	for _, n := range m.Names {
		if seen[n] {
			return fmt.Errorf("duplicate feature %q", n)
		}
		seen[n] = true
	}
	return nil
}

func (m *LinearModel) FeatureNames() []string {
	out := make([]string, len(m.Names))
	copy(out, m.Names)
	return out
}

func (m *LinearModel) Version() string { return m.ModelVersion }

func (m *LinearModel) PredictProba(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("row %d has %d values, model expects %d", i, len(row), len(m.Coefficients))
		}
		z := m.Intercept
		for j, x := range row {
			z += m.Coefficients[j] * x
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out, nil
}
