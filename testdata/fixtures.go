// Package testdata provides recorded blendshape streams for tests.
package testdata

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/ayusman/moodsense/internal/detector"
)

//go:embed frames/*.jsonl
var framesFS embed.FS

// Recording names.
const (
	NeutralToHappy = "neutral_to_happy"
	Mixed          = "mixed"
)

// OpenRecording opens a recording by name, without the .jsonl extension.
func OpenRecording(name string) (fs.File, error) {
	f, err := framesFS.Open("frames/" + name + ".jsonl")
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", name, err)
	}
	return f, nil
}

// Recordings lists the names of all embedded recordings.
func Recordings() ([]string, error) {
	entries, err := framesFS.ReadDir("frames")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".jsonl"))
	}
	return names, nil
}

// Replay returns a detector that plays the recording back.
func Replay(name string) (*detector.ReplayDetector, error) {
	f, err := OpenRecording(name)
	if err != nil {
		return nil, err
	}
	return detector.NewReplayDetector(f), nil
}

// LoadFrames decodes every frame of a recording.
func LoadFrames(name string) ([]*detector.Frame, error) {
	d, err := Replay(name)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var frames []*detector.Frame
	for {
		frame, err := d.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load frames %s: %w", name, err)
		}
		frames = append(frames, frame)
	}
}
