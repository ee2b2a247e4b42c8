package app

import (
	"sync"

	"github.com/influxdata/tdigest"
)

// statsCompression is the t-digest compression; higher keeps more centroids.
const statsCompression = 50

// ConfidenceStats tracks the distribution of classifier confidences so the
// acceptance threshold can be tuned against real data.
type ConfidenceStats struct {
	mu        sync.Mutex
	digest    *tdigest.TDigest
	threshold float64

	observations int64
	scored       int64
	rejected     int64
	noDetection  int64
	commits      int64
}

// StatsSnapshot is a point-in-time copy of ConfidenceStats.
type StatsSnapshot struct {
	Observations int64   `json:"observations"`
	Scored       int64   `json:"scored"`
	Rejected     int64   `json:"rejected"`
	NoDetection  int64   `json:"no_detection"`
	Commits      int64   `json:"commits"`
	Threshold    float64 `json:"threshold"`

	// Percentiles of scored confidences, keyed "p10" ... "p90". Empty until
	// the first scored observation.
	Percentiles map[string]float64 `json:"percentiles"`
}

var reportedPercentiles = []struct {
	name string
	q    float64
}{
	{"p10", 0.10},
	{"p25", 0.25},
	{"p50", 0.50},
	{"p75", 0.75},
	{"p90", 0.90},
}

// NewConfidenceStats creates stats that count confidences below threshold as rejected.
func NewConfidenceStats(threshold float64) *ConfidenceStats {
	return &ConfidenceStats{
		digest:    tdigest.NewWithCompression(statsCompression),
		threshold: threshold,
	}
}

// Add records one observation.
func (s *ConfidenceStats) Add(confidence float64, hasConfidence, detected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observations++
	if hasConfidence {
		s.scored++
		s.digest.Add(confidence, 1)
		if confidence < s.threshold {
			s.rejected++
			return
		}
	}
	if !detected {
		s.noDetection++
	}
}

// AddCommit counts one committed letter.
func (s *ConfidenceStats) AddCommit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}

// Snapshot returns the current counters and percentiles.
func (s *ConfidenceStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Observations: s.observations,
		Scored:       s.scored,
		Rejected:     s.rejected,
		NoDetection:  s.noDetection,
		Commits:      s.commits,
		Threshold:    s.threshold,
		Percentiles:  make(map[string]float64),
	}
	if s.scored == 0 {
		return snap
	}
	for _, p := range reportedPercentiles {
		snap.Percentiles[p.name] = s.digest.Quantile(p.q)
	}
	return snap
}
