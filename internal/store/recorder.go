package store

import (
	"fmt"

	"github.com/ayusman/moodsense/internal/app"
)

// Recorder persists sessions and smoothed mood changes. It implements
// app.Sink and app.SessionListener.
type Recorder struct {
	store *Store
}

// NewRecorder returns a recorder writing to s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s}
}

// SessionStarted records a new session.
func (r *Recorder) SessionStarted(info app.SessionInfo) error {
	err := r.store.Sessions().Create(&Session{
		ID:        info.ID,
		StreamID:  info.StreamID,
		StartedAt: info.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

// SessionEnded records the end of a session.
func (r *Recorder) SessionEnded(info app.SessionInfo) error {
	if err := r.store.Sessions().End(info.ID, info.EndedAt, info.Frames); err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	return nil
}

// Emit records the result if the smoothed mood changed. Frames without a
// face are not recorded.
func (r *Recorder) Emit(res app.Result) error {
	if !res.Changed || !res.FaceDetected {
		return nil
	}

	err := r.store.Transitions().Record(&Transition{
		SessionID:   res.SessionID,
		Sequence:    res.Sequence,
		TimestampMs: res.TimestampMs,
		Mood:        string(res.Smoothed),
		Previous:    string(res.Previous),
		Raw:         string(res.Raw),
	})
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}
