package detector

import "context"

// Detector defines the interface for face blendshape sources.
type Detector interface {
	// Next blocks until the next inference result is available.
	// Returns io.EOF when the source has no more frames.
	Next(ctx context.Context) (*Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// MaxFaces is the maximum number of faces to detect (default: 1).
	MaxFaces int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// CameraID is handed to the inference service, which owns the capture device.
	CameraID int

	// Codec names the wire encoding of inference results ("json", "cbor" or "msgpack").
	Codec string

	// Script and Python override service discovery when set.
	Script string
	Python string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		Codec:           "json",
	}
}
