package stabilizer

import (
	"math"
	"reflect"
	"testing"

	"github.com/ayusman/fingerspell/internal/alphabet"
)

// run feeds labels through s and returns the committed letters and their positions (1-based).
func run(s *Stabilizer, labels string) (string, []int) {
	var committed []rune
	var positions []int
	i := 0
	for _, r := range labels {
		i++
		obs := Labeled(r)
		if r == '_' {
			obs = NoDetection()
		}
		if c, ok := s.Observe(obs); ok {
			committed = append(committed, c.Letter)
			positions = append(positions, i)
		}
	}
	return string(committed), positions
}

func TestStabilizer_Examples(t *testing.T) {
	tests := []struct {
		name   string
		labels string
		want   string
	}{
		{name: "single streak then short streak", labels: "AAAABB", want: "A"},
		{name: "alternating noise", labels: "ABABABAB", want: ""},
		{name: "two full streaks", labels: "AAAAAAAA", want: "AA"},
		{name: "broken by mismatch", labels: "AAABAAA", want: ""},
		{name: "broken by no detection", labels: "AAA_AAA", want: ""},
		{name: "letter change mid stream", labels: "AAAABBBBCCCC", want: "ABC"},
		{name: "empty input", labels: "", want: ""},
		{name: "only gaps", labels: "______", want: ""},
		{name: "motion letter ignored", labels: "JJJJJJJJ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig())
			got, _ := run(s, tt.labels)
			if got != tt.want {
				t.Errorf("committed %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStabilizer_CommitPositions(t *testing.T) {
	for _, threshold := range []int{1, 2, 3, 4, 7} {
		for length := 0; length <= 30; length++ {
			s := New(Config{CommitThreshold: threshold})
			labels := make([]rune, length)
			for i := range labels {
				labels[i] = 'B'
			}

			got, positions := run(s, string(labels))

			wantCount := length / threshold
			if len(got) != wantCount {
				t.Fatalf("T=%d len=%d: %d commits, want %d", threshold, length, len(got), wantCount)
			}
			for i, p := range positions {
				if p != (i+1)*threshold {
					t.Errorf("T=%d len=%d: commit %d at position %d, want %d", threshold, length, i, p, (i+1)*threshold)
				}
			}
		}
	}
}

func TestStabilizer_LowConfidenceIgnored(t *testing.T) {
	s := New(DefaultConfig())

	s.Observe(Scored('A', 0.9))
	s.Observe(Scored('A', 0.9))
	before := s.State()

	if _, ok := s.Observe(Scored('B', 0.2)); ok {
		t.Fatal("low confidence observation should never commit")
	}
	if _, ok := s.Observe(Scored('A', 0.49)); ok {
		t.Fatal("low confidence observation should never commit")
	}

	if got := s.State(); got != before {
		t.Errorf("state changed on low confidence frames: %+v, want %+v", got, before)
	}

	s.Observe(Scored('A', 0.5))
	c, ok := s.Observe(Scored('A', 0.7))
	if !ok {
		t.Fatal("expected commit once the streak resumes")
	}
	if c.Letter != 'A' || c.Confidence != 0.7 || !c.HasConfidence {
		t.Errorf("unexpected commit %+v", c)
	}
}

func TestStabilizer_LowConfidenceNoDetection(t *testing.T) {
	s := New(DefaultConfig())

	run(s, "AAA")
	s.Observe(Observation{Label: NoLabel, Confidence: 0.1, HasConfidence: true})

	if got := s.State(); got.Candidate != 'A' || got.Streak != 3 {
		t.Errorf("state = %+v, want candidate A streak 3", got)
	}
}

func TestStabilizer_NoDetectionResetsStreak(t *testing.T) {
	s := New(DefaultConfig())

	run(s, "AA")
	s.Observe(NoDetection())

	if got := s.State(); got != (State{}) {
		t.Errorf("state = %+v, want empty", got)
	}
}

func TestStabilizer_Reset(t *testing.T) {
	inputs := []string{"AAAABB", "ABABABAB", "AAAAAAAA", "AAA_AAAA", "BBBAAAAC"}

	for _, prefix := range []string{"A", "AAA", "BBBBB", "AB_"} {
		for _, in := range inputs {
			fresh := New(DefaultConfig())
			wantLetters, wantPos := run(fresh, in)

			s := New(DefaultConfig())
			run(s, prefix)
			s.Reset()
			if s.State() != (State{}) {
				t.Fatalf("state after Reset() = %+v, want empty", s.State())
			}

			gotLetters, gotPos := run(s, in)
			if gotLetters != wantLetters || !reflect.DeepEqual(gotPos, wantPos) {
				t.Errorf("prefix %q input %q: got %q at %v, want %q at %v",
					prefix, in, gotLetters, gotPos, wantLetters, wantPos)
			}
		}
	}
}

func TestStabilizer_Commit(t *testing.T) {
	s := New(Config{CommitThreshold: 2, Delimiter: "-"})

	s.Observe(Labeled('L'))
	c, ok := s.Observe(Labeled('L'))
	if !ok {
		t.Fatal("expected commit")
	}

	if c.Text() != "L-" {
		t.Errorf("Text() = %q, want %q", c.Text(), "L-")
	}
	if c.HasConfidence {
		t.Error("unscored observation should produce an unscored commit")
	}
	if got := s.State(); got.Candidate != 'L' || got.Streak != 0 {
		t.Errorf("state after commit = %+v, want candidate L streak 0", got)
	}
}

func TestStabilizer_CustomAlphabet(t *testing.T) {
	s := New(Config{CommitThreshold: 2, Alphabet: alphabet.New("JZ")})

	got, _ := run(s, "JJAAZZ")
	if got != "JZ" {
		t.Errorf("committed %q, want %q", got, "JZ")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{CommitThreshold: -1, MinConfidence: -2})
	cfg := s.Config()

	if cfg.CommitThreshold != DefaultCommitThreshold {
		t.Errorf("CommitThreshold = %d, want %d", cfg.CommitThreshold, DefaultCommitThreshold)
	}
	if cfg.MinConfidence != 0 {
		t.Errorf("MinConfidence = %f, want 0", cfg.MinConfidence)
	}
	if cfg.Alphabet == nil {
		t.Error("Alphabet should default to the static alphabet")
	}
}

func TestNew_MinConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "in range", in: 0.7, want: 0.7},
		{name: "negative", in: -2, want: 0},
		{name: "above one", in: 3, want: 1},
		{name: "positive infinity", in: math.Inf(1), want: 1},
		{name: "not a number", in: math.NaN(), want: DefaultMinConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{CommitThreshold: 4, MinConfidence: tt.in})
			if got := s.Config().MinConfidence; got != tt.want {
				t.Errorf("MinConfidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStabilizer_NaNThresholdStillGates(t *testing.T) {
	s := New(Config{CommitThreshold: 4, MinConfidence: math.NaN(), Delimiter: " "})

	for i := 0; i < 4; i++ {
		if _, ok := s.Observe(Scored('A', 0.01)); ok {
			t.Fatalf("low-confidence frame %d committed", i+1)
		}
	}
	if state := s.State(); state != (State{}) {
		t.Errorf("State() = %+v, want zero", state)
	}
}

func TestNew_PartialConfig(t *testing.T) {
	s := New(Config{CommitThreshold: 2})
	cfg := s.Config()

	if cfg.MinConfidence != 0 || cfg.Delimiter != "" {
		t.Errorf("Config() = %+v, want fields kept as given", cfg)
	}

	got, _ := run(s, "AA")
	if got != "A" {
		t.Errorf("committed %q, want %q", got, "A")
	}
}
