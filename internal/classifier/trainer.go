package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/fingerspell/internal/detector"
)

// Sample is one labeled training example.
type Sample struct {
	Label    string    `json:"label"`
	Features []float64 `json:"features"`
}

// recordedSample is the JSON form of a sample captured by the settings page.
// Either features or raw landmarks may be supplied.
type recordedSample struct {
	Label     string             `json:"label"`
	Features  []float64          `json:"features,omitempty"`
	Landmarks []detector.Point3D `json:"landmarks,omitempty"`
}

// ParseSample decodes a recorded sample. Landmarks are converted to features
// the same way live frames are.
func ParseSample(raw json.RawMessage) (Sample, error) {
	var rec recordedSample
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if rec.Label == "" {
		return Sample{}, errors.New("sample has no label")
	}

	if len(rec.Features) > 0 {
		if err := CheckFeatureCount(len(rec.Features)); err != nil {
			return Sample{}, err
		}
		return Sample{Label: rec.Label, Features: rec.Features}, nil
	}

	if len(rec.Landmarks) != detector.NumLandmarks {
		return Sample{}, fmt.Errorf("sample has %d landmarks, expected %d", len(rec.Landmarks), detector.NumLandmarks)
	}

	var hand detector.HandLandmarks
	copy(hand.Points[:], rec.Landmarks)
	return Sample{Label: rec.Label, Features: hand.Features()}, nil
}

// CheckFeatureCount returns ErrFeatureMismatch unless n is the length of the
// feature vectors the detector produces.
func CheckFeatureCount(n int) error {
	if n != detector.FeatureCount {
		return fmt.Errorf("%w: got %d features, detector produces %d", ErrFeatureMismatch, n, detector.FeatureCount)
	}
	return nil
}

// TrainOptions controls gradient descent.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainOptions returns options that converge on landmark features.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Epochs:       400,
		LearningRate: 0.5,
		L2:           1e-4,
	}
}

// Trainer fits a multinomial logistic regression to labeled samples.
type Trainer struct {
	opts TrainOptions
}

// NewTrainer creates a Trainer. Zero options fall back to the defaults.
func NewTrainer(opts TrainOptions) *Trainer {
	def := DefaultTrainOptions()
	if opts.Epochs <= 0 {
		opts.Epochs = def.Epochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.L2 < 0 {
		opts.L2 = 0
	}
	return &Trainer{opts: opts}
}

// Train runs full-batch gradient descent on the softmax cross-entropy loss.
// Classes are ordered by label and weights start at zero, so the result only
// depends on the samples and options.
func (t *Trainer) Train(samples []Sample) (*Model, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	featureCount := len(samples[0].Features)
	if featureCount == 0 {
		return nil, fmt.Errorf("sample 0 has no features")
	}

	classIndex := make(map[string]int)
	for i, s := range samples {
		if len(s.Features) != featureCount {
			return nil, fmt.Errorf("%w: sample %d has %d features, expected %d",
				ErrFeatureMismatch, i, len(s.Features), featureCount)
		}
		classIndex[s.Label] = 0
	}
	if len(classIndex) < 2 {
		return nil, fmt.Errorf("need samples of at least 2 labels, got %d", len(classIndex))
	}

	labels := make([]string, 0, len(classIndex))
	for label := range classIndex {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for i, label := range labels {
		classIndex[label] = i
	}

	k := len(labels)
	weights := make([][]float64, k)
	grads := make([][]float64, k)
	for i := range weights {
		weights[i] = make([]float64, featureCount)
		grads[i] = make([]float64, featureCount)
	}
	intercepts := make([]float64, k)
	interceptGrads := make([]float64, k)

	scores := make([]float64, k)
	n := float64(len(samples))

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		for c := range grads {
			for j := range grads[c] {
				grads[c][j] = 0
			}
			interceptGrads[c] = 0
		}

		for _, s := range samples {
			for c := range weights {
				scores[c] = dot(weights[c], s.Features) + intercepts[c]
			}
			probs := softmax(scores)
			target := classIndex[s.Label]

			for c := range probs {
				diff := probs[c]
				if c == target {
					diff -= 1
				}
				for j, x := range s.Features {
					grads[c][j] += diff * x
				}
				interceptGrads[c] += diff
			}
		}

		for c := range weights {
			for j := range weights[c] {
				g := grads[c][j]/n + t.opts.L2*weights[c][j]
				weights[c][j] -= t.opts.LearningRate * g
			}
			intercepts[c] -= t.opts.LearningRate * interceptGrads[c] / n
		}
	}

	return &Model{
		Labels:       labels,
		FeatureCount: featureCount,
		Weights:      weights,
		Intercepts:   intercepts,
	}, nil
}
