// Package ingest receives inference results pushed by an external
// blendshape service over ZeroMQ.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/moodsense/internal/detector"
)

// Config configures a ZMQDetector.
type Config struct {
	// Endpoint is the address the PULL socket connects to.
	Endpoint string
	// Codec names the message encoding ("cbor", "msgpack" or "json").
	Codec string
	// LogEvery logs only every Nth receive or decode problem.
	LogEvery int
	// Buffer is the number of decoded frames queued ahead of the reader.
	Buffer int
}

// DefaultConfig returns the ingest defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint: "tcp://127.0.0.1:5556",
		Codec:    "cbor",
		LogEvery: 100,
		Buffer:   128,
	}
}

// pollInterval bounds how long a receive blocks before the loop checks for
// cancellation.
const pollInterval = 200 * time.Millisecond

// receiver is the part of *zmq4.Socket the receive loop uses.
type receiver interface {
	RecvBytes(flags zmq4.Flag) ([]byte, error)
}

// ZMQDetector is a detector.Detector fed by a ZeroMQ PULL socket. Messages
// that fail to decode are logged and skipped.
type ZMQDetector struct {
	endpoint string
	codec    detector.Codec
	problems *sampler

	frames chan *detector.Frame
	cancel context.CancelFunc
	done   chan struct{}
}

// NewZMQDetector connects to cfg.Endpoint and starts receiving.
func NewZMQDetector(cfg Config) (*ZMQDetector, error) {
	d, err := newDetector(cfg)
	if err != nil {
		return nil, err
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	if err := socket.SetRcvtimeo(pollInterval); err != nil {
		socket.Close()
		return nil, fmt.Errorf("set receive timeout: %w", err)
	}
	if err := socket.Connect(d.endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("connect %s: %w", d.endpoint, err)
	}

	log.WithFields(log.Fields{
		"endpoint": d.endpoint,
		"codec":    d.codec.Name(),
	}).Info("ZMQ ingest connected")

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go func() {
		// The socket is only touched from this goroutine.
		defer socket.Close()
		d.run(ctx, socket)
	}()

	return d, nil
}

func newDetector(cfg Config) (*ZMQDetector, error) {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Codec == "" {
		cfg.Codec = def.Codec
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}

	codec, err := detector.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	return &ZMQDetector{
		endpoint: cfg.Endpoint,
		codec:    codec,
		problems: newSampler(cfg.LogEvery),
		frames:   make(chan *detector.Frame, cfg.Buffer),
		done:     make(chan struct{}),
	}, nil
}

// Next returns the next decoded frame. It returns io.EOF once the detector
// is closed and all queued frames have been read.
func (d *ZMQDetector) Next(ctx context.Context) (*detector.Frame, error) {
	select {
	case frame, ok := <-d.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the receive loop and closes the socket.
func (d *ZMQDetector) Close() error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()
	<-d.done
	return nil
}

func (d *ZMQDetector) run(ctx context.Context, rx receiver) {
	defer close(d.done)
	defer close(d.frames)

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := rx.RecvBytes(0)
		if err != nil {
			if !isTimeout(err) {
				d.problems.Warnf(d.entry(), "Receive error: %v", err)
			}
			continue
		}

		frame, ok := d.decode(msg)
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case d.frames <- frame:
		}
	}
}

func (d *ZMQDetector) decode(msg []byte) (*detector.Frame, bool) {
	frame, err := detector.DecodeFrame(d.codec, msg)
	if err != nil {
		d.problems.Warnf(d.entry().WithField("size", len(msg)), "Skipping message: %v", err)
		return nil, false
	}
	return frame, true
}

func (d *ZMQDetector) entry() *log.Entry {
	return log.WithField("endpoint", d.endpoint)
}

func isTimeout(err error) bool {
	return zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) || errors.Is(err, syscall.EAGAIN)
}

// sampler logs every Nth call. It is used from a single goroutine.
type sampler struct {
	every int
	count int
}

func newSampler(every int) *sampler {
	if every < 1 {
		every = 1
	}
	return &sampler{every: every}
}

// Warnf logs on the first call and on every Nth call after that.
func (s *sampler) Warnf(entry *log.Entry, format string, args ...any) bool {
	s.count++
	if (s.count-1)%s.every != 0 {
		return false
	}
	entry.WithField("occurrences", s.count).Warnf(format, args...)
	return true
}
