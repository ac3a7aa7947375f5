// Package app provides the main application logic for the Moodsense mood recognition system.
package app

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/moodsense/internal/detector"
	"github.com/ayusman/moodsense/internal/emotion"
	"github.com/ayusman/moodsense/internal/smoother"
)

// Sink receives every result produced by the pipeline.
type Sink interface {
	Emit(Result) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Result) error

// Emit calls f(r).
func (f SinkFunc) Emit(r Result) error { return f(r) }

// SessionListener is implemented by sinks that track session boundaries.
type SessionListener interface {
	SessionStarted(SessionInfo) error
	SessionEnded(SessionInfo) error
}

// Config holds configuration options for the application.
type Config struct {
	Scorer    *emotion.Scorer
	Smoothing smoother.Config
	Detector  detector.Detector
	Sinks     []Sink
}

// App is the main application that pulls frames from a detector, runs them
// through the current session and fans the results out to sinks.
type App struct {
	config   Config
	scorer   *emotion.Scorer
	detector detector.Detector
	sinks    []Sink
	enabled  bool
	latest   *Result
	mu       sync.RWMutex

	// procMu serializes frame processing and session swaps so sinks see
	// session events and results in order.
	procMu  sync.Mutex
	session *Session
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	scorer := config.Scorer
	if scorer == nil {
		scorer = emotion.DefaultScorer()
	}

	a := &App{
		config:   config,
		scorer:   scorer,
		detector: config.Detector,
		sinks:    append([]Sink(nil), config.Sinks...),
		enabled:  true,
	}

	if a.detector == nil {
		// Try MediaPipe first, fall back to mock detector
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe face blendshapes")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// AddSink registers s to receive results.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled enables or disables mood processing. Frames read while
// disabled are dropped.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether mood processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the frame source to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the frame source.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Scorer returns the scorer shared by all sessions.
func (a *App) Scorer() *emotion.Scorer {
	return a.scorer
}

// Status returns the most recent result, if any.
func (a *App) Status() (Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latest == nil {
		return Result{}, false
	}
	return *a.latest, true
}

// Session returns the current session, if one has started.
func (a *App) Session() (SessionInfo, bool) {
	a.procMu.Lock()
	defer a.procMu.Unlock()
	if a.session == nil {
		return SessionInfo{}, false
	}
	return a.session.Info(), true
}

// ResetSession ends the current session and starts a new one for streamID.
// An empty streamID keeps the current session's stream. The smoothing
// history starts empty.
func (a *App) ResetSession(streamID string) SessionInfo {
	a.procMu.Lock()
	defer a.procMu.Unlock()

	if streamID == "" && a.session != nil {
		streamID = a.session.StreamID()
	}
	a.startSession(streamID)

	a.mu.Lock()
	a.latest = nil
	a.mu.Unlock()

	return a.session.Info()
}

// ProcessFrame runs one frame through the current session and emits the
// result to all sinks. A frame from a different stream starts a new session.
func (a *App) ProcessFrame(frame *detector.Frame) (Result, bool, error) {
	a.procMu.Lock()
	defer a.procMu.Unlock()

	if frame == nil {
		return Result{}, false, fmt.Errorf("process frame: nil frame")
	}
	if a.session == nil || a.session.StreamID() != frame.StreamID {
		a.startSession(frame.StreamID)
	}

	result, ok, err := a.session.Process(frame)
	if err != nil || !ok {
		return result, ok, err
	}

	a.mu.Lock()
	a.latest = &result
	a.mu.Unlock()

	if result.Changed {
		log.WithFields(log.Fields{
			"session":  result.SessionID,
			"mood":     result.Smoothed,
			"previous": result.Previous,
			"raw":      result.Raw,
		}).Info("Mood changed")
	}

	for _, s := range a.sinkList() {
		if err := s.Emit(result); err != nil {
			log.WithError(err).WithField("sink", fmt.Sprintf("%T", s)).Warn("Sink failed")
		}
	}

	return result, true, nil
}

// Close ends the current session and closes the detector.
func (a *App) Close() error {
	a.procMu.Lock()
	a.endSession()
	a.procMu.Unlock()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			return fmt.Errorf("close detector: %w", err)
		}
	}
	return nil
}

func (a *App) sinkList() []Sink {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Sink(nil), a.sinks...)
}

// startSession must be called with procMu held.
func (a *App) startSession(streamID string) {
	a.endSession()

	a.session = NewSession(streamID, a.scorer, a.config.Smoothing)
	info := a.session.Info()
	log.WithFields(log.Fields{"session": info.ID, "stream": streamID}).Info("Session started")

	for _, s := range a.sinkList() {
		if l, ok := s.(SessionListener); ok {
			if err := l.SessionStarted(info); err != nil {
				log.WithError(err).WithField("sink", fmt.Sprintf("%T", s)).Warn("Session start not recorded")
			}
		}
	}
}

// endSession must be called with procMu held.
func (a *App) endSession() {
	if a.session == nil {
		return
	}

	info := a.session.Info()
	info.EndedAt = time.Now()
	a.session = nil
	log.WithFields(log.Fields{"session": info.ID, "frames": info.Frames}).Info("Session ended")

	for _, s := range a.sinkList() {
		if l, ok := s.(SessionListener); ok {
			if err := l.SessionEnded(info); err != nil {
				log.WithError(err).WithField("sink", fmt.Sprintf("%T", s)).Warn("Session end not recorded")
			}
		}
	}
}
