// Package detector provides hand detection interfaces and the landmark types fed to the letter classifier.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// FeatureOrder lists the joints that make up a feature vector, fingertip first
// for each finger from thumb to pinky. The wrist is the normalization origin and
// carries no information.
var FeatureOrder = [...]int{
	ThumbTip, ThumbIP, ThumbMCP, ThumbCMC,
	IndexTip, IndexDIP, IndexPIP, IndexMCP,
	MiddleTip, MiddleDIP, MiddlePIP, MiddleMCP,
	RingTip, RingDIP, RingPIP, RingMCP,
	PinkyTip, PinkyDIP, PinkyPIP, PinkyMCP,
}

// FeatureCount is the length of a feature vector: an (x, y) pair per joint.
const FeatureCount = len(FeatureOrder) * 2

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected for one hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

func (p Point3D) sub(o Point3D) Point3D {
	return Point3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Point3D) norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Normalize returns a copy of the landmarks translated so the wrist is at the
// origin and scaled so the wrist to middle finger MCP distance is 1.0.
// A degenerate hand (zero scale) is only translated.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := range h.Points {
		normalized.Points[i] = h.Points[i].sub(wrist)
	}

	scale := normalized.Points[MiddleMCP].norm()
	if scale < 1e-10 {
		return normalized
	}

	for i := range normalized.Points {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// Features returns the classifier input for the hand: the normalized (x, y)
// position of every joint in FeatureOrder. Depth is not part of the vector.
func (h *HandLandmarks) Features() []float64 {
	if h == nil {
		return nil
	}

	normalized := h.Normalize()
	features := make([]float64, 0, FeatureCount)
	for _, joint := range FeatureOrder {
		p := normalized.Points[joint]
		features = append(features, p.X, p.Y)
	}
	return features
}
