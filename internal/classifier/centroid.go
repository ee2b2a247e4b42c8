package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ayusman/fingerspell/internal/alphabet"
)

// Centroid is a nearest-template classifier. Each label's samples are
// averaged into one template, and a frame is labeled with the closest
// template. It needs no training pass, so it can run as soon as samples have
// been recorded.
//
// Confidence is 1 / (1 + distance), where distance sums the Euclidean
// distances of corresponding (x, y) joints.
type Centroid struct {
	labels    []string
	letters   []rune
	templates [][]float64
}

// NewCentroid averages samples per label into templates.
func NewCentroid(samples []Sample, a *alphabet.Alphabet) (*Centroid, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples provided")
	}
	if a == nil {
		a = alphabet.Default()
	}

	featureCount := len(samples[0].Features)
	if featureCount == 0 || featureCount%2 != 0 {
		return nil, fmt.Errorf("sample 0 has %d features, expected (x, y) pairs", featureCount)
	}

	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for i, s := range samples {
		if len(s.Features) != featureCount {
			return nil, fmt.Errorf("%w: sample %d has %d features, expected %d",
				ErrFeatureMismatch, i, len(s.Features), featureCount)
		}
		sum, ok := sums[s.Label]
		if !ok {
			sum = make([]float64, featureCount)
			sums[s.Label] = sum
		}
		for j, v := range s.Features {
			sum[j] += v
		}
		counts[s.Label]++
	}

	c := &Centroid{}
	for label := range sums {
		c.labels = append(c.labels, label)
	}
	sort.Strings(c.labels)

	for _, label := range c.labels {
		template := sums[label]
		n := float64(counts[label])
		for j := range template {
			template[j] /= n
		}
		c.templates = append(c.templates, template)

		letter, _ := a.Normalize(label)
		c.letters = append(c.letters, letter)
	}

	return c, nil
}

// Labels returns the template labels in sorted order.
func (c *Centroid) Labels() []string {
	return c.labels
}

// FeatureCount returns the length of the templates.
func (c *Centroid) FeatureCount() int {
	return len(c.templates[0])
}

// Classify returns the closest template.
func (c *Centroid) Classify(features []float64) (Prediction, error) {
	featureCount := len(c.templates[0])
	if len(features) != featureCount {
		return Prediction{}, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), featureCount)
	}

	best, bestDist := 0, math.Inf(1)
	for k, template := range c.templates {
		if d := jointDistance(features, template); d < bestDist {
			best, bestDist = k, d
		}
	}

	return Prediction{
		Label:      c.letters[best],
		Class:      c.labels[best],
		Confidence: 1 / (1 + bestDist),
	}, nil
}

// jointDistance sums the distances between corresponding (x, y) joints.
func jointDistance(a, b []float64) float64 {
	var total float64
	for i := 0; i+1 < len(a); i += 2 {
		dx := a[i] - b[i]
		dy := a[i+1] - b[i+1]
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total
}
