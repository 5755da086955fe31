// Package classifier loads the trained host-health model and its label
// encoder. A model maps a feature vector to a class index and one probability
// per class; the encoder turns class indices into categories.
package classifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// Model predicts a class index and a probability per class.
type Model interface {
	Predict(x [model.FeatureCount]float64) (code int, probs []float64, err error)
}

// Softmax is a multinomial logistic regression with per-feature
// standardisation, exported from the training pipeline as JSON.
type Softmax struct {
	FeatureNames []string    `json:"feature_names,omitempty"`
	Mean         []float64   `json:"mean"`
	Scale        []float64   `json:"scale"`
	Coef         [][]float64 `json:"coef"`      // classes x features
	Intercept    []float64   `json:"intercept"` // classes
}

// LoadSoftmax reads and validates a model file.
func LoadSoftmax(path string) (*Softmax, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	var m Softmax
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}

	slog.Info("loaded model", "path", path, "classes", m.Classes())
	return &m, nil
}

// Load reads a model and its label encoder and checks they agree on the
// number of classes.
func Load(modelPath, labelsPath string) (*Softmax, *LabelEncoder, error) {
	m, err := LoadSoftmax(modelPath)
	if err != nil {
		return nil, nil, err
	}
	enc, err := LoadLabelEncoder(labelsPath)
	if err != nil {
		return nil, nil, err
	}
	if enc.Len() != m.Classes() {
		return nil, nil, fmt.Errorf("model has %d classes but labels file has %d", m.Classes(), enc.Len())
	}
	return m, enc, nil
}

// Classes returns the number of output classes.
func (m *Softmax) Classes() int { return len(m.Intercept) }

// Validate checks the model's dimensions.
func (m *Softmax) Validate() error {
	if m.FeatureNames != nil {
		if len(m.FeatureNames) != model.FeatureCount {
			return fmt.Errorf("model expects %d features, want %d", len(m.FeatureNames), model.FeatureCount)
		}
		for i, name := range m.FeatureNames {
			if name != model.FeatureNames[i] {
				return fmt.Errorf("feature %d is %q, want %q", i, name, model.FeatureNames[i])
			}
		}
	}
	if len(m.Mean) != model.FeatureCount || len(m.Scale) != model.FeatureCount {
		return fmt.Errorf("scaler has %d means and %d scales, want %d", len(m.Mean), len(m.Scale), model.FeatureCount)
	}
	if len(m.Intercept) < 2 {
		return fmt.Errorf("model has %d classes, need at least 2", len(m.Intercept))
	}
	if len(m.Coef) != len(m.Intercept) {
		return fmt.Errorf("model has %d coefficient rows for %d classes", len(m.Coef), len(m.Intercept))
	}
	for i, row := range m.Coef {
		if len(row) != model.FeatureCount {
			return fmt.Errorf("coefficient row %d has %d values, want %d", i, len(row), model.FeatureCount)
		}
	}
	return nil
}

// Predict standardises x, applies the linear layer and returns the softmax
// distribution with its argmax.
func (m *Softmax) Predict(x [model.FeatureCount]float64) (int, []float64, error) {
	var z [model.FeatureCount]float64
	for i := range x {
		s := m.Scale[i]
		if s == 0 {
			s = 1
		}
		z[i] = (x[i] - m.Mean[i]) / s
	}

	logits := make([]float64, len(m.Intercept))
	for k := range logits {
		v := m.Intercept[k]
		for i, w := range m.Coef[k] {
			v += w * z[i]
		}
		logits[k] = v
	}

	probs := softmax(logits)
	best := 0
	for k, p := range probs {
		if math.IsNaN(p) {
			return 0, nil, fmt.Errorf("class %d probability is NaN", k)
		}
		if p > probs[best] {
			best = k
		}
	}
	return best, probs, nil
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
