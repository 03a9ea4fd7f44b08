package inference

import "time"

// NumLandmarks is the fixed number of landmark points per detected hand.
const NumLandmarks = 21

type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Handedness string

const (
	HandednessLeft  Handedness = "Left"
	HandednessRight Handedness = "Right"
)

// HandPose is one detected hand: an ordered list of NumLandmarks points
// plus a handedness label and detection score.
type HandPose struct {
	Landmarks  []Landmark `json:"landmarks"`
	Handedness Handedness `json:"handedness"`
	Score      float64    `json:"score"`
}

// Result is the outcome of one inference call for exactly one input frame.
// Zero hands is a normal result, not an error.
type Result struct {
	Hands     []HandPose    `json:"hands"`
	Timestamp time.Duration `json:"timestamp"`
}
