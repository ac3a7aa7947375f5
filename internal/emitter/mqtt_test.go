package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/moodsense/internal/app"
	"github.com/ayusman/moodsense/internal/emotion"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.msgs = append(p.msgs, message{topic, retained, payload.([]byte)})
	}
	return newToken(p.err)
}

func newTestEmitter(cfg Config) (*MQTTEmitter, *fakePublisher) {
	pub := &fakePublisher{}
	e := NewMQTTEmitter(cfg)
	e.pub = pub
	e.connected = true
	return e, pub
}

func TestMQTTEmitter_PublishesMoodChanges(t *testing.T) {
	e, pub := newTestEmitter(Config{Topic: "home/desk"})

	results := []app.Result{
		{SessionID: "s", Sequence: 1, FaceDetected: true, Raw: emotion.Neutral, Smoothed: emotion.Neutral, Changed: true},
		{SessionID: "s", Sequence: 2, FaceDetected: true, Raw: emotion.Happy, Smoothed: emotion.Neutral},
		{SessionID: "s", Sequence: 3, Raw: emotion.Neutral, Smoothed: emotion.Neutral},
		{SessionID: "s", Sequence: 4, FaceDetected: true, Raw: emotion.Happy, Smoothed: emotion.Happy, Previous: emotion.Neutral, Changed: true},
	}
	for _, r := range results {
		if err := e.Emit(r); err != nil {
			t.Fatalf("Emit() error: %v", err)
		}
	}

	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.msgs))
	}
	last := pub.msgs[1]
	if last.topic != "home/desk/mood" || !last.retained {
		t.Errorf("message = %s retained=%v", last.topic, last.retained)
	}

	var msg MoodMessage
	if err := json.Unmarshal(last.payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Mood != "happy" || msg.Previous != "neutral" || msg.Sequence != 4 {
		t.Errorf("payload = %+v", msg)
	}

	stats := e.Stats()
	if stats.Published["home/desk/mood"] != 2 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMQTTEmitter_PublishAll(t *testing.T) {
	e, pub := newTestEmitter(Config{PublishAll: true})

	e.Emit(app.Result{SessionID: "s", Sequence: 1, Raw: emotion.Neutral, Smoothed: emotion.Neutral})
	e.Emit(app.Result{SessionID: "s", Sequence: 2, FaceDetected: true, Raw: emotion.Sad, Smoothed: emotion.Sad, Changed: true})

	var topics []string
	for _, m := range pub.msgs {
		topics = append(topics, m.topic)
	}
	want := []string{"moodsense/frames", "moodsense/mood", "moodsense/frames"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %s, want %s", i, topics[i], want[i])
		}
	}
	if pub.msgs[0].retained {
		t.Error("frame messages should not be retained")
	}
}

func TestMQTTEmitter_SessionEvents(t *testing.T) {
	e, pub := newTestEmitter(DefaultConfig())

	info := app.SessionInfo{ID: "s-1", StartedAt: time.Now()}
	e.SessionStarted(info)
	e.SessionEnded(info)

	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.msgs))
	}
	var msg SessionMessage
	json.Unmarshal(pub.msgs[1].payload, &msg)
	if pub.msgs[1].topic != "moodsense/session" || msg.Event != "ended" || msg.Session.ID != "s-1" {
		t.Errorf("message = %s %+v", pub.msgs[1].topic, msg)
	}
}

func TestMQTTEmitter_Errors(t *testing.T) {
	change := app.Result{FaceDetected: true, Smoothed: emotion.Happy, Changed: true}

	t.Run("not connected", func(t *testing.T) {
		e := NewMQTTEmitter(Config{})
		if err := e.Emit(change); err == nil {
			t.Error("expected error when not connected")
		}
		if e.Stats().Errors != 1 {
			t.Errorf("errors = %d, want 1", e.Stats().Errors)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		e, pub := newTestEmitter(Config{})
		pub.err = errors.New("broker gone")
		if err := e.Emit(change); err == nil {
			t.Error("expected publish error")
		}
		stats := e.Stats()
		if stats.Errors != 1 || len(stats.Published) != 0 {
			t.Errorf("stats = %+v", stats)
		}
	})
}

func TestBrokerURL(t *testing.T) {
	tests := map[string]string{
		"localhost:1883":      "tcp://localhost:1883",
		"tcp://broker:1883":   "tcp://broker:1883",
		"ssl://broker:8883":   "ssl://broker:8883",
		"ws://broker:80/mqtt": "ws://broker:80/mqtt",
	}
	for in, want := range tests {
		if got := brokerURL(in); got != want {
			t.Errorf("brokerURL(%q) = %q, want %q", in, got, want)
		}
	}
}
