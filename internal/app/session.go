package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/moodsense/internal/detector"
	"github.com/ayusman/moodsense/internal/emotion"
	"github.com/ayusman/moodsense/internal/features"
	"github.com/ayusman/moodsense/internal/smoother"
)

// Result is the outcome of one accepted frame.
type Result struct {
	SessionID    string           `json:"session_id"`
	StreamID     string           `json:"stream_id,omitempty"`
	Sequence     int64            `json:"sequence"`
	TimestampMs  int64            `json:"timestamp_ms"`
	FaceDetected bool             `json:"face_detected"`
	Raw          emotion.Category `json:"raw"`
	Smoothed     emotion.Category `json:"smoothed"`
	Previous     emotion.Category `json:"previous,omitempty"`
	Changed      bool             `json:"changed"`
	Scores       emotion.Scores   `json:"scores,omitempty"`
}

// SessionInfo describes a session for sinks and status reporting.
type SessionInfo struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"stream_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
	Frames    int64     `json:"frames"`
}

// Session holds the per-stream state of the mood pipeline. A Session is
// owned by a single goroutine.
type Session struct {
	id       string
	streamID string
	started  time.Time

	scorer   *emotion.Scorer
	smoother *smoother.Smoother

	seen          bool
	lastTimestamp int64
	sequence      int64
	frames        int64
	smoothed      emotion.Category
}

// NewSession starts a session for streamID with an empty history.
func NewSession(streamID string, scorer *emotion.Scorer, cfg smoother.Config) *Session {
	if scorer == nil {
		scorer = emotion.DefaultScorer()
	}
	return &Session{
		id:       uuid.New().String(),
		streamID: streamID,
		started:  time.Now(),
		scorer:   scorer,
		smoother: smoother.New(cfg),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StreamID returns the stream the session was started for.
func (s *Session) StreamID() string { return s.streamID }

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		StreamID:  s.streamID,
		StartedAt: s.started,
		Frames:    s.frames,
	}
}

// Process runs one frame through feature extraction, scoring and smoothing.
//
// The second return value is false when the frame was skipped because its
// timestamp repeats the previous accepted frame. A frame without a face
// yields a neutral result and leaves the history untouched. A frame with
// non-finite scores is rejected with an error wrapping
// detector.ErrInvalidFeatureInput.
func (s *Session) Process(frame *detector.Frame) (Result, bool, error) {
	if frame == nil {
		return Result{}, false, errors.New("nil frame")
	}
	if s.seen && frame.TimestampMs == s.lastTimestamp {
		return Result{}, false, nil
	}

	raw, ok := frame.Primary()
	if ok {
		if err := raw.Validate(); err != nil {
			return Result{}, false, fmt.Errorf("frame %d: %w", frame.TimestampMs, err)
		}
	}

	s.seen = true
	s.lastTimestamp = frame.TimestampMs
	s.sequence++

	result := Result{
		SessionID:   s.id,
		StreamID:    s.streamID,
		Sequence:    s.sequence,
		TimestampMs: frame.TimestampMs,
	}

	if !ok {
		result.Raw = emotion.Neutral
		result.Smoothed = emotion.Neutral
		result.Previous = s.smoothed
		return result, true, nil
	}

	category, scores := s.scorer.Score(features.Extract(raw))
	smoothed := s.smoother.Smooth(category)
	s.frames++

	result.FaceDetected = true
	result.Raw = category
	result.Smoothed = smoothed
	result.Scores = scores
	result.Previous = s.smoothed
	result.Changed = smoothed != s.smoothed
	s.smoothed = smoothed

	return result, true, nil
}
