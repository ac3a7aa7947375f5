package hook

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/moodsense/internal/app"
	"github.com/ayusman/moodsense/internal/store"
)

// ActionLookup returns the action bound to a mood, or nil if none is bound.
type ActionLookup interface {
	GetByMood(mood string) (*store.Action, error)
}

// Runner is an app.Sink that runs the bound plugin action whenever the
// smoothed mood changes. Plugins run on a background worker so the frame
// loop never waits on them; changes arriving while the queue is full are
// dropped.
type Runner struct {
	manager  *Manager
	executor *Executor
	actions  ActionLookup

	mu     sync.Mutex
	closed bool
	queue  chan app.Result
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnResult is called after each plugin run, if set. Used by tests.
	OnResult func(req *Request, resp *Response, err error)
}

// QueueSize is the number of pending mood changes a Runner buffers.
const QueueSize = 16

// NewRunner starts a runner. Call Close to stop it.
func NewRunner(manager *Manager, executor *Executor, actions ActionLookup) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		manager:  manager,
		executor: executor,
		actions:  actions,
		queue:    make(chan app.Result, QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	r.wg.Add(1)
	go r.loop()
	return r
}

// Emit queues a mood change for the bound plugin.
func (r *Runner) Emit(res app.Result) error {
	if !res.Changed || !res.FaceDetected {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("hook runner closed")
	}

	select {
	case r.queue <- res:
		return nil
	default:
		return fmt.Errorf("hook queue full, dropped %s", res.Smoothed)
	}
}

// Close waits for queued changes to finish and stops the worker.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
	return nil
}

func (r *Runner) loop() {
	defer r.wg.Done()

	for res := range r.queue {
		req, resp, err := r.run(res)
		if req != nil && r.OnResult != nil {
			r.OnResult(req, resp, err)
		}

		entry := log.WithField("mood", res.Smoothed)
		switch {
		case err != nil:
			entry.WithError(err).Warn("Hook failed")
		case resp != nil && !resp.Success:
			entry.WithField("error", resp.Error).Warn("Hook reported failure")
		case resp != nil:
			entry.WithField("action", req.Action).Debug("Hook ran")
		}
	}
}

// run looks up and executes the action for res. A nil request means no
// enabled action is bound to the mood.
func (r *Runner) run(res app.Result) (*Request, *Response, error) {
	action, err := r.actions.GetByMood(string(res.Smoothed))
	if err != nil {
		return nil, nil, fmt.Errorf("lookup action: %w", err)
	}
	if action == nil || !action.Enabled {
		return nil, nil, nil
	}

	req := &Request{
		Action:      action.ActionName,
		Mood:        string(res.Smoothed),
		Previous:    string(res.Previous),
		SessionID:   res.SessionID,
		TimestampMs: res.TimestampMs,
		Config:      action.Config,
	}

	plugin, err := r.manager.Get(action.PluginName)
	if err != nil {
		return req, nil, fmt.Errorf("%s: %w", action.PluginName, err)
	}
	if !plugin.Manifest.HasAction(action.ActionName) {
		return req, nil, fmt.Errorf("%s: unknown action %q", action.PluginName, action.ActionName)
	}

	resp, err := r.executor.Execute(r.ctx, plugin, req)
	return req, resp, err
}
