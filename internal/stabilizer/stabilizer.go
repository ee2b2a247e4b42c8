// Package stabilizer turns a noisy stream of per-frame letter classifications into
// a sparse stream of committed letters.
//
// A letter commits once the same label has been observed CommitThreshold times in a
// row. After a commit the streak starts over, so holding a sign for 2*T sampled
// frames commits the letter twice. Low-confidence frames are ignored entirely, while
// frames without a usable label break the current streak.
package stabilizer

import (
	"math"

	"github.com/ayusman/fingerspell/internal/alphabet"
)

// Default stabilizer settings.
const (
	DefaultCommitThreshold = 4
	DefaultMinConfidence   = 0.5
	DefaultDelimiter       = " "
)

// NoLabel is the label of a frame in which no hand or landmarks were detected.
const NoLabel rune = 0

// Observation is one sampled frame's raw classification.
type Observation struct {
	Label         rune
	Confidence    float64
	HasConfidence bool
}

// NoDetection returns an observation for a frame without a hand.
func NoDetection() Observation {
	return Observation{Label: NoLabel}
}

// Labeled returns an observation without a confidence score.
func Labeled(label rune) Observation {
	return Observation{Label: label}
}

// Scored returns an observation with a confidence score.
func Scored(label rune, confidence float64) Observation {
	return Observation{Label: label, Confidence: confidence, HasConfidence: true}
}

// Commit is a stabilized letter ready to be appended to a transcript.
type Commit struct {
	Letter        rune
	Delimiter     string
	Confidence    float64
	HasConfidence bool
}

// Text returns the letter followed by its delimiter.
func (c Commit) Text() string {
	return string(c.Letter) + c.Delimiter
}

// State is the stabilizer's memory.
type State struct {
	Candidate rune
	Streak    int
}

// Config holds stabilizer settings. Fields are taken as given apart from the
// corrections New makes: a zero MinConfidence accepts every score and an empty
// Delimiter joins letters directly. Start from DefaultConfig to change a
// single setting.
type Config struct {
	// CommitThreshold is the number of consecutive matching frames needed to commit.
	CommitThreshold int

	// MinConfidence is the acceptance threshold for scored observations (0.0-1.0).
	MinConfidence float64

	// Delimiter is appended after every committed letter.
	Delimiter string

	// Alphabet is the set of accepted labels. Nil means the static ASL alphabet.
	Alphabet *alphabet.Alphabet
}

// DefaultConfig returns a Config with the default settings.
func DefaultConfig() Config {
	return Config{
		CommitThreshold: DefaultCommitThreshold,
		MinConfidence:   DefaultMinConfidence,
		Delimiter:       DefaultDelimiter,
		Alphabet:        alphabet.Default(),
	}
}

// Stabilizer is a repeat-count filter over raw classifications.
// It is not safe for concurrent use.
type Stabilizer struct {
	config Config
	state  State
}

// New creates a Stabilizer. A non-positive CommitThreshold or a MinConfidence
// that is not a number falls back to the default; MinConfidence is clamped to
// [0, 1].
func New(config Config) *Stabilizer {
	if config.CommitThreshold <= 0 {
		config.CommitThreshold = DefaultCommitThreshold
	}
	switch {
	case math.IsNaN(config.MinConfidence):
		config.MinConfidence = DefaultMinConfidence
	case config.MinConfidence < 0:
		config.MinConfidence = 0
	case config.MinConfidence > 1:
		config.MinConfidence = 1
	}
	if config.Alphabet == nil {
		config.Alphabet = alphabet.Default()
	}
	return &Stabilizer{config: config}
}

// Observe feeds one sampled frame into the filter and returns the commit it
// produced, if any.
func (s *Stabilizer) Observe(obs Observation) (Commit, bool) {
	if obs.HasConfidence && obs.Confidence < s.config.MinConfidence {
		return Commit{}, false
	}

	if !s.config.Alphabet.Contains(obs.Label) {
		s.state = State{}
		return Commit{}, false
	}

	if obs.Label == s.state.Candidate {
		s.state.Streak++
	} else {
		s.state.Candidate = obs.Label
		s.state.Streak = 1
	}

	if s.state.Streak < s.config.CommitThreshold {
		return Commit{}, false
	}

	s.state.Streak = 0
	return Commit{
		Letter:        s.state.Candidate,
		Delimiter:     s.config.Delimiter,
		Confidence:    obs.Confidence,
		HasConfidence: obs.HasConfidence,
	}, true
}

// Reset clears the candidate and streak.
func (s *Stabilizer) Reset() {
	s.state = State{}
}

// State returns a copy of the current state.
func (s *Stabilizer) State() State {
	return s.state
}

// Config returns the effective configuration.
func (s *Stabilizer) Config() Config {
	return s.config
}
