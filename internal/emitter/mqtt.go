// Package emitter publishes mood results to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/moodsense/internal/app"
)

const publishTimeout = 2 * time.Second

// Config configures the MQTT emitter.
type Config struct {
	Broker   string // host:port or a full URL such as tcp://host:1883
	ClientID string
	Username string
	Password string
	Topic    string // topic prefix
	QoS      byte

	// PublishAll also publishes every result, not only mood changes.
	PublishAll bool
}

// DefaultConfig returns the emitter defaults.
func DefaultConfig() Config {
	return Config{
		Broker:   "localhost:1883",
		ClientID: "moodsense",
		Topic:    "moodsense",
	}
}

// publisher is the part of mqtt.Client the emitter uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MoodMessage is published retained to <topic>/mood on every change of the
// smoothed mood.
type MoodMessage struct {
	SessionID   string `json:"session_id"`
	StreamID    string `json:"stream_id,omitempty"`
	Mood        string `json:"mood"`
	Previous    string `json:"previous,omitempty"`
	Sequence    int64  `json:"sequence"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// SessionMessage is published to <topic>/session when a session starts or ends.
type SessionMessage struct {
	Event   string          `json:"event"`
	Session app.SessionInfo `json:"session"`
}

// MQTTEmitter is an app.Sink that publishes results to an MQTT broker.
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client
	pub    publisher

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter. Call Connect before emitting.
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	if cfg.Topic == "" {
		cfg.Topic = DefaultConfig().Topic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultConfig().ClientID
	}
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes the connection to the broker. The client reconnects
// automatically afterwards.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	if e.cfg.Username != "" {
		opts.SetUsername(e.cfg.Username)
		opts.SetPassword(e.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		log.WithFields(log.Fields{
			"broker":    e.cfg.Broker,
			"client_id": e.cfg.ClientID,
		}).Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		log.WithError(err).WithField("broker", e.cfg.Broker).Warn("MQTT connection lost, will auto-reconnect")
	}

	e.client = mqtt.NewClient(opts)
	e.pub = e.client

	log.WithField("broker", e.cfg.Broker).Info("Connecting to MQTT broker")

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Emit publishes mood changes, and every result when PublishAll is set.
// Frames without a face are only published as part of PublishAll.
func (e *MQTTEmitter) Emit(res app.Result) error {
	if res.Changed && res.FaceDetected {
		msg := MoodMessage{
			SessionID:   res.SessionID,
			StreamID:    res.StreamID,
			Mood:        string(res.Smoothed),
			Previous:    string(res.Previous),
			Sequence:    res.Sequence,
			TimestampMs: res.TimestampMs,
		}
		if err := e.publish("mood", true, msg); err != nil {
			return err
		}
	}

	if e.cfg.PublishAll {
		return e.publish("frames", false, res)
	}
	return nil
}

// SessionStarted publishes a session start event.
func (e *MQTTEmitter) SessionStarted(info app.SessionInfo) error {
	return e.publish("session", false, SessionMessage{Event: "started", Session: info})
}

// SessionEnded publishes a session end event.
func (e *MQTTEmitter) SessionEnded(info app.SessionInfo) error {
	return e.publish("session", false, SessionMessage{Event: "ended", Session: info})
}

func (e *MQTTEmitter) publish(subtopic string, retained bool, v any) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	topic := e.cfg.Topic + "/" + subtopic

	payload, err := json.Marshal(v)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal %s message: %w", subtopic, err)
	}

	token := e.pub.Publish(topic, e.cfg.QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	log.WithFields(log.Fields{
		"topic":    topic,
		"qos":      e.cfg.QoS,
		"retained": retained,
		"size":     len(payload),
	}).Debug("Published")

	return nil
}

// Disconnect closes the MQTT connection.
func (e *MQTTEmitter) Disconnect() error {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250) // 250ms grace period
		log.Info("MQTT disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// brokerURL adds the tcp scheme to a bare host:port.
func brokerURL(broker string) string {
	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://", "mqtt://", "mqtts://"} {
		if strings.HasPrefix(broker, scheme) {
			return broker
		}
	}
	return "tcp://" + broker
}
