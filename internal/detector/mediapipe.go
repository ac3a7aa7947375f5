package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

// maxMessageSize bounds a single length-prefixed message from the service.
const maxMessageSize = 1 << 20

// MediaPipeDetector implements Detector using a Python MediaPipe face landmarker subprocess.
//
// The service owns the camera. It writes one message per processed frame to stdout:
// a 4-byte big-endian length followed by a Frame encoded with the configured codec.
type MediaPipeDetector struct {
	config  Config
	codec   Codec
	cmd     *exec.Cmd
	stdout  *bufio.Reader
	closer  io.Closer
	mu      sync.Mutex
	started bool
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on the first call to Next.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	codec, err := CodecByName(config.Codec)
	if err != nil {
		return nil, err
	}

	if config.Script == "" {
		config.Script = findMediaPipeScript()
	}
	if config.Script == "" {
		return nil, fmt.Errorf("face_service.py not found")
	}

	return &MediaPipeDetector{
		config: config,
		codec:  codec,
	}, nil
}

// Next reads the next inference result from the service.
func (d *MediaPipeDetector) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if err := d.ensureStarted(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	stdout := d.stdout
	d.mu.Unlock()

	data, err := readMessage(stdout)
	if err != nil {
		return nil, err
	}

	return DecodeFrame(d.codec, data)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := d.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.config.Script,
		"--camera", strconv.Itoa(d.config.CameraID),
		"--max-faces", strconv.Itoa(d.config.MaxFaces),
		"--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
		"--codec", d.codec.Name(),
	)

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start face service: %w", err)
	}

	d.stdout = bufio.NewReader(stdout)
	d.closer = stdout
	d.started = true

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	if d.closer != nil {
		d.closer.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdout = nil
	d.closer = nil

	if exitErr, ok := err.(*exec.ExitError); ok && !exitErr.Exited() {
		// Killed by us.
		return nil
	}
	return err
}

// readMessage reads one length-prefixed message.
func readMessage(r io.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(length[:])
	if n > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit %d", n, maxMessageSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return data, nil
}

func findMediaPipeScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/face_service.py",
		"../scripts/face_service.py",
		filepath.Join(execDir, "scripts/face_service.py"),
		filepath.Join(os.Getenv("HOME"), ".moodsense/scripts/face_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".moodsense/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
