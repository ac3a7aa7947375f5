package detector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// ReplayDetector reads newline-delimited JSON frames from a recording.
// Blank lines and lines starting with '#' are ignored.
type ReplayDetector struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReplayDetector creates a ReplayDetector over r. If r is an io.Closer,
// Close closes it.
func NewReplayDetector(r io.Reader) *ReplayDetector {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	d := &ReplayDetector{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// Next returns the next recorded frame, or io.EOF at the end of the recording.
func (d *ReplayDetector) Next(ctx context.Context) (*Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		d.line++

		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		frame, err := DecodeFrame(JSON, line)
		if err != nil {
			return nil, &LineError{Line: d.line, Err: err}
		}
		return frame, nil
	}
}

// Close closes the underlying reader if it is closable.
func (d *ReplayDetector) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// LineError reports a recording line that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
