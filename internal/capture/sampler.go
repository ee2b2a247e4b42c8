package capture

import (
	"sync"
	"time"
)

// DefaultSampleEvery is how many captured frames pass per classified frame.
const DefaultSampleEvery = 10

// Sampler throttles captured frames down to the rate at which frames are
// classified. A frame is admitted when it is the EveryN-th frame since the last
// admitted one and at least MinInterval has passed since then.
type Sampler struct {
	everyN      int
	minInterval time.Duration
	now         func() time.Time

	mu    sync.Mutex
	count int
	last  time.Time
}

// NewSampler creates a Sampler. everyN <= 1 admits every frame; a zero
// minInterval disables the time gap.
func NewSampler(everyN int, minInterval time.Duration) *Sampler {
	if everyN < 1 {
		everyN = 1
	}
	if minInterval < 0 {
		minInterval = 0
	}
	return &Sampler{
		everyN:      everyN,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Admit records one captured frame and reports whether it should be classified.
func (s *Sampler) Admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count < s.everyN {
		return false
	}

	now := s.now()
	if s.minInterval > 0 && !s.last.IsZero() && now.Sub(s.last) < s.minInterval {
		return false
	}

	s.count = 0
	s.last = now
	return true
}

// Reset forgets the frame count and the last admitted time.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.last = time.Time{}
}
