package detector

import (
	"context"
	"io"
	"sync"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a scripted queue of frames and then reports io.EOF.
type MockDetector struct {
	mu     sync.Mutex
	frames []*Frame
	err    error
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrames replaces the queued frames.
func (m *MockDetector) SetFrames(frames []*Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append([]*Frame(nil), frames...)
}

// Push appends a frame to the queue.
func (m *MockDetector) Push(frame *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
}

// SetError sets the error that will be returned by Next before any queued frame.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Next returns the next queued frame, the configured error, or io.EOF.
func (m *MockDetector) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		err := m.err
		m.err = nil
		return nil, err
	}
	if m.closed || len(m.frames) == 0 {
		return nil, io.EOF
	}

	frame := m.frames[0]
	m.frames = m.frames[1:]
	return frame, nil
}

// Close marks the detector closed; subsequent calls to Next return io.EOF.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FrameOf wraps a single face's blendshapes in a Frame.
func FrameOf(timestampMs int64, b Blendshapes) *Frame {
	return &Frame{
		TimestampMs: timestampMs,
		Faces:       []Face{{Blendshapes: b, Score: 0.95}},
	}
}

// NeutralBlendshapes returns a relaxed face with only resting-level activations.
func NeutralBlendshapes() Blendshapes {
	return Blendshapes{
		EyeBlinkLeft:  0.05,
		EyeBlinkRight: 0.05,
		MouthClose:    0.02,
	}
}

// HappyBlendshapes returns a Duchenne smile: lip corners up with cheek raise.
func HappyBlendshapes() Blendshapes {
	return Blendshapes{
		MouthSmileLeft:   0.75,
		MouthSmileRight:  0.7,
		CheekSquintLeft:  0.35,
		CheekSquintRight: 0.3,
		EyeSquintLeft:    0.2,
		EyeSquintRight:   0.2,
	}
}

// SadBlendshapes returns raised inner brows with lip corners pulled down.
func SadBlendshapes() Blendshapes {
	return Blendshapes{
		BrowInnerUp:     0.6,
		MouthFrownLeft:  0.4,
		MouthFrownRight: 0.45,
		JawOpen:         0.15,
	}
}

// AngryBlendshapes returns lowered brows with pressed lips.
func AngryBlendshapes() Blendshapes {
	return Blendshapes{
		BrowDownLeft:   0.7,
		BrowDownRight:  0.65,
		EyeSquintLeft:  0.3,
		EyeSquintRight: 0.3,
		MouthClose:     0.5,
	}
}

// SurprisedBlendshapes returns wide eyes, raised brows and a dropped jaw.
func SurprisedBlendshapes() Blendshapes {
	return Blendshapes{
		EyeWideLeft:      0.7,
		EyeWideRight:     0.7,
		BrowOuterUpLeft:  0.6,
		BrowOuterUpRight: 0.6,
		JawOpen:          0.55,
	}
}
