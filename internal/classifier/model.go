// Package classifier maps hand feature vectors to fingerspelled letters.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ayusman/fingerspell/internal/alphabet"
	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// ErrFeatureMismatch is returned when a feature vector has the wrong length.
var ErrFeatureMismatch = errors.New("feature vector length mismatch")

// Prediction is the most probable letter for one frame.
// Label is stabilizer.NoLabel when the winning class is not a letter.
type Prediction struct {
	Label      rune
	Class      string
	Confidence float64
}

// Observation converts the prediction into stabilizer input.
func (p Prediction) Observation() stabilizer.Observation {
	return stabilizer.Scored(p.Label, p.Confidence)
}

// Classifier labels a feature vector.
type Classifier interface {
	Classify(features []float64) (Prediction, error)
}

// Model holds the parameters of a multinomial logistic regression.
//
// Weights has one row per class, or a single row for a two-class model in which
// case the row scores Labels[1] against Labels[0].
type Model struct {
	Labels       []string    `json:"labels"`
	FeatureCount int         `json:"feature_count"`
	Weights      [][]float64 `json:"weights"`
	Intercepts   []float64   `json:"intercepts"`
}

// Validate checks that the model's dimensions agree.
func (m *Model) Validate() error {
	if len(m.Labels) < 2 {
		return fmt.Errorf("model needs at least 2 labels, has %d", len(m.Labels))
	}
	if m.FeatureCount <= 0 {
		return fmt.Errorf("invalid feature count %d", m.FeatureCount)
	}

	rows := len(m.Labels)
	if len(m.Labels) == 2 && len(m.Weights) == 1 {
		rows = 1
	}
	if len(m.Weights) != rows {
		return fmt.Errorf("model has %d weight rows, expected %d", len(m.Weights), rows)
	}
	if len(m.Intercepts) != rows {
		return fmt.Errorf("model has %d intercepts, expected %d", len(m.Intercepts), rows)
	}
	for i, w := range m.Weights {
		if len(w) != m.FeatureCount {
			return fmt.Errorf("weight row %d has %d values, expected %d", i, len(w), m.FeatureCount)
		}
	}
	return nil
}

// Load reads a model from a JSON file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the model to a JSON file, replacing it atomically.
func Save(path string, m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return os.Rename(tmp, path)
}

// LogisticRegression classifies feature vectors with a Model.
// It is safe for concurrent use; the model must not be modified afterwards.
type LogisticRegression struct {
	model   *Model
	letters []rune
}

// NewLogisticRegression creates a classifier for the model. Class labels are
// resolved against the alphabet; classes outside it (for example "nothing")
// predict stabilizer.NoLabel.
func NewLogisticRegression(m *Model, a *alphabet.Alphabet) (*LogisticRegression, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if a == nil {
		a = alphabet.Default()
	}

	letters := make([]rune, len(m.Labels))
	for i, label := range m.Labels {
		if r, ok := a.Normalize(label); ok {
			letters[i] = r
		}
	}

	return &LogisticRegression{model: m, letters: letters}, nil
}

// Model returns the underlying model.
func (c *LogisticRegression) Model() *Model {
	return c.model
}

// Probabilities returns the probability of every class, in Labels order.
func (c *LogisticRegression) Probabilities(features []float64) ([]float64, error) {
	if len(features) != c.model.FeatureCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), c.model.FeatureCount)
	}

	scores := make([]float64, len(c.model.Weights))
	for k, w := range c.model.Weights {
		scores[k] = dot(w, features) + c.model.Intercepts[k]
	}

	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}, nil
	}
	return softmax(scores), nil
}

// Classify returns the most probable class and its probability.
func (c *LogisticRegression) Classify(features []float64) (Prediction, error) {
	probs, err := c.Probabilities(features)
	if err != nil {
		return Prediction{}, err
	}

	best := 0
	for k := range probs {
		if probs[k] > probs[best] {
			best = k
		}
	}

	return Prediction{
		Label:      c.letters[best],
		Class:      c.model.Labels[best],
		Confidence: probs[best],
	}, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softmax normalizes scores into probabilities. The maximum is subtracted first
// so large scores do not overflow.
func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
