package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to report (default: 1).
	MaxHands int

	// MinConfidence is the minimum hand score (0.0-1.0); weaker hands are dropped.
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      1,
		MinConfidence: 0.5,
	}
}

// Filter drops hands below MinConfidence and keeps at most MaxHands of the rest,
// most confident first.
func (c Config) Filter(hands []HandLandmarks) []HandLandmarks {
	kept := make([]HandLandmarks, 0, len(hands))
	for _, h := range hands {
		if h.Score >= c.MinConfidence {
			kept = append(kept, h)
		}
	}

	for i := 1; i < len(kept); i++ {
		for j := i; j > 0 && kept[j].Score > kept[j-1].Score; j-- {
			kept[j], kept[j-1] = kept[j-1], kept[j]
		}
	}

	if c.MaxHands > 0 && len(kept) > c.MaxHands {
		kept = kept[:c.MaxHands]
	}
	return kept
}
