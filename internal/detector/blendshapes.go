// Package detector provides face blendshape sources for mood recognition.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Blendshape names following the MediaPipe face landmarker convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	BrowDownLeft      = "browDownLeft"
	BrowDownRight     = "browDownRight"
	BrowInnerUp       = "browInnerUp"
	BrowOuterUpLeft   = "browOuterUpLeft"
	BrowOuterUpRight  = "browOuterUpRight"
	CheekPuff         = "cheekPuff"
	CheekSquintLeft   = "cheekSquintLeft"
	CheekSquintRight  = "cheekSquintRight"
	EyeBlinkLeft      = "eyeBlinkLeft"
	EyeBlinkRight     = "eyeBlinkRight"
	EyeSquintLeft     = "eyeSquintLeft"
	EyeSquintRight    = "eyeSquintRight"
	EyeWideLeft       = "eyeWideLeft"
	EyeWideRight      = "eyeWideRight"
	JawOpen           = "jawOpen"
	MouthClose        = "mouthClose"
	MouthFrownLeft    = "mouthFrownLeft"
	MouthFrownRight   = "mouthFrownRight"
	MouthFunnel       = "mouthFunnel"
	MouthLeft         = "mouthLeft"
	MouthPress        = "mouthPress"
	MouthPucker       = "mouthPucker"
	MouthRight        = "mouthRight"
	MouthSmileLeft    = "mouthSmileLeft"
	MouthSmileRight   = "mouthSmileRight"
	MouthStretchLeft  = "mouthStretchLeft"
	MouthStretchRight = "mouthStretchRight"
	MouthUpperUpLeft  = "mouthUpperUpLeft"
	MouthUpperUpRight = "mouthUpperUpRight"
	NoseSneerLeft     = "noseSneerLeft"
	NoseSneerRight    = "noseSneerRight"
)

// ErrInvalidFeatureInput is returned when a frame carries scores that are not finite numbers.
var ErrInvalidFeatureInput = errors.New("invalid feature input")

// Blendshapes maps blendshape names to activation scores for a single face.
// Scores are conventionally in [0,1] but are not clamped.
type Blendshapes map[string]float64

// Get returns the score for name, or 0 when the name is absent.
func (b Blendshapes) Get(name string) float64 {
	return b[name]
}

// Validate reports an error wrapping ErrInvalidFeatureInput for the first
// score that is NaN or infinite.
func (b Blendshapes) Validate() error {
	for name, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidFeatureInput, name, v)
		}
	}
	return nil
}

// Face is one detected face with its blendshape scores.
type Face struct {
	Blendshapes Blendshapes `json:"blendshapes" msgpack:"blendshapes"`
	Score       float64     `json:"score,omitempty" msgpack:"score,omitempty"`
}

// Frame is the inference result for one video frame.
type Frame struct {
	// TimestampMs is the video time of the frame; equal timestamps mean the same frame.
	TimestampMs int64 `json:"timestamp_ms" msgpack:"timestamp_ms"`

	// StreamID identifies the capture stream. A new value marks a session boundary.
	StreamID string `json:"stream_id,omitempty" msgpack:"stream_id,omitempty"`

	Faces []Face `json:"faces" msgpack:"faces"`
}

// Primary returns the blendshapes of the first detected face.
// The second return value is false when no face was detected.
func (f *Frame) Primary() (Blendshapes, bool) {
	if f == nil || len(f.Faces) == 0 {
		return nil, false
	}
	return f.Faces[0].Blendshapes, true
}
