// Package smoother stabilizes per-frame emotion labels over a short window of recent frames.
package smoother

import (
	"github.com/ayusman/moodsense/internal/emotion"
)

// Config controls the smoothing window.
type Config struct {
	Capacity       int     // number of recent labels kept
	WarmUp         int     // labels required before smoothing starts
	ConsensusRatio float64 // share of the window a non-neutral label needs
}

// DefaultConfig returns the tuned defaults: a 15-frame window (about half a
// second at 30 fps), 5 frames of warm-up and 40% consensus.
func DefaultConfig() Config {
	return Config{
		Capacity:       15,
		WarmUp:         5,
		ConsensusRatio: 0.4,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.WarmUp <= 0 {
		c.WarmUp = d.WarmUp
	}
	if c.WarmUp > c.Capacity {
		c.WarmUp = c.Capacity
	}
	if c.ConsensusRatio <= 0 || c.ConsensusRatio > 1 {
		c.ConsensusRatio = d.ConsensusRatio
	}
	return c
}

// History is a bounded FIFO of raw labels. The oldest label is evicted once
// the history is full.
type History struct {
	window []emotion.Category // circular buffer
	pos    int                // next write position
	filled int
}

// NewHistory returns an empty history holding at most capacity labels.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultConfig().Capacity
	}
	return &History{window: make([]emotion.Category, capacity)}
}

// Push appends c, evicting the oldest label when full.
func (h *History) Push(c emotion.Category) {
	h.window[h.pos] = c
	h.pos = (h.pos + 1) % len(h.window)
	if h.filled < len(h.window) {
		h.filled++
	}
}

// Len returns the number of labels held.
func (h *History) Len() int { return h.filled }

// Cap returns the maximum number of labels held.
func (h *History) Cap() int { return len(h.window) }

// Snapshot returns the held labels, oldest first.
func (h *History) Snapshot() []emotion.Category {
	out := make([]emotion.Category, h.filled)
	for i := range h.filled {
		out[i] = h.at(i)
	}
	return out
}

// at returns the i-th oldest label.
func (h *History) at(i int) emotion.Category {
	return h.window[(h.pos-h.filled+i+len(h.window))%len(h.window)]
}

// Reset clears the history.
func (h *History) Reset() {
	h.pos = 0
	h.filled = 0
	for i := range h.window {
		h.window[i] = ""
	}
}

// Dominant returns the most frequent label and its count. Labels are ranked in
// order of first appearance, oldest first, and a later label must be strictly
// more frequent to displace an earlier one. An empty history yields neutral
// with a count of 0.
func (h *History) Dominant() (emotion.Category, int) {
	counts := make(map[emotion.Category]int, len(emotion.Categories))
	order := make([]emotion.Category, 0, len(emotion.Categories))
	for i := range h.filled {
		c := h.at(i)
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	dominant, best := emotion.Neutral, 0
	for _, c := range order {
		if counts[c] > best {
			dominant, best = c, counts[c]
		}
	}
	return dominant, best
}

// Smoother turns raw per-frame labels into a stable label. It is not safe
// for concurrent use; one goroutine owns a Smoother for a session.
type Smoother struct {
	config  Config
	history *History
}

// New returns a Smoother with an empty history.
func New(config Config) *Smoother {
	config = config.normalized()
	return &Smoother{
		config:  config,
		history: NewHistory(config.Capacity),
	}
}

// Smooth records raw and returns the label to report for this frame.
//
// During warm-up raw is returned unchanged. Afterwards the dominant label of
// the window is returned if it is neutral or holds at least ConsensusRatio of
// the window; otherwise raw is returned.
func (s *Smoother) Smooth(raw emotion.Category) emotion.Category {
	s.history.Push(raw)

	n := s.history.Len()
	if n < s.config.WarmUp {
		return raw
	}

	dominant, count := s.history.Dominant()
	threshold := float64(n) * s.config.ConsensusRatio
	if dominant == emotion.Neutral || float64(count) >= threshold {
		return dominant
	}
	return raw
}

// Warm reports whether enough labels have been seen for smoothing to apply.
func (s *Smoother) Warm() bool {
	return s.history.Len() >= s.config.WarmUp
}

// Reset clears the history. Call it at session boundaries only.
func (s *Smoother) Reset() {
	s.history.Reset()
}

// History returns the labels currently in the window, oldest first.
func (s *Smoother) History() []emotion.Category {
	return s.history.Snapshot()
}
