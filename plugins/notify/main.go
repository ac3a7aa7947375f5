// Package main provides a notification hook for moodsense.
// It posts a desktop notification or appends the mood change to a log file.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Request represents the input from the hook executor.
type Request struct {
	Action      string          `json:"action"`
	Mood        string          `json:"mood"`
	Previous    string          `json:"previous"`
	SessionID   string          `json:"session_id"`
	TimestampMs int64           `json:"timestamp_ms"`
	Config      json.RawMessage `json:"config"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-binding configuration.
type Config struct {
	Title   string `json:"title"`
	Message string `json:"message"` // {mood} and {previous} are substituted
	Path    string `json:"path"`    // log action only
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(req Request, cfg Config) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"notify": notify,
	"log":    appendLog,
}

// runCommand is replaced in tests.
var runCommand = func(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func main() {
	json.NewEncoder(os.Stdout).Encode(handle(os.Stdin))
}

func handle(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	var cfg Config
	if len(req.Config) > 0 && string(req.Config) != "null" {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return Response{Error: fmt.Sprintf("invalid config: %v", err)}
		}
	}

	if err := handler(req, cfg); err != nil {
		return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
	}
	return Response{Success: true}
}

// message renders the notification text.
func message(req Request, cfg Config) (title, body string) {
	title = cfg.Title
	if title == "" {
		title = "moodsense"
	}
	body = cfg.Message
	if body == "" {
		body = "Mood changed to {mood}"
	}
	r := strings.NewReplacer("{mood}", req.Mood, "{previous}", req.Previous)
	return r.Replace(title), r.Replace(body)
}

// notify posts a desktop notification with osascript on macOS and
// notify-send elsewhere.
func notify(req Request, cfg Config) error {
	title, body := message(req, cfg)
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return runCommand("osascript", "-e", script)
	}
	return runCommand("notify-send", title, body)
}

type logEntry struct {
	Time      time.Time `json:"time"`
	Mood      string    `json:"mood"`
	Previous  string    `json:"previous,omitempty"`
	SessionID string    `json:"session_id"`
}

// appendLog writes the change as one JSON line to cfg.Path.
func appendLog(req Request, cfg Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("config.path is required")
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(logEntry{
		Time:      time.UnixMilli(req.TimestampMs),
		Mood:      req.Mood,
		Previous:  req.Previous,
		SessionID: req.SessionID,
	})
}
