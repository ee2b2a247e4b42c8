package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// serviceScript is the Python helper that runs the MediaPipe hand landmarker.
	serviceScript = "hand_service.py"

	// idleShutdown is how long the helper may sit unused before it is stopped.
	idleShutdown = 30 * time.Second

	// maxEncodeWidth bounds the width of frames sent to the helper. Landmarks
	// come back relative to the image, so a uniform downscale keeps features.
	maxEncodeWidth = 640
)

// MediaPipeDetector implements Detector with a MediaPipe helper process.
// The helper is started on the first frame and stopped after idleShutdown.
type MediaPipeDetector struct {
	config Config
	python string
	script string

	mu        sync.Mutex
	proc      *helperProcess
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the helper script and a Python interpreter.
// It fails if the script is missing, so callers can fall back to another detector.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := findServiceScript()
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	python := findVenvPython()
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		python: python,
		script: script,
	}, nil
}

// Detect sends the frame to the helper and returns the hands it found,
// filtered by the detector config.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	jpeg, err := encodeFrame(frame)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := startHelper(d.python, d.script, d.config)
		if err != nil {
			return nil, err
		}
		d.proc = proc
	}

	line, err := d.proc.roundTrip(jpeg)
	if err != nil {
		// the stream is out of sync; the next frame starts a fresh helper
		d.shutdown()
		return nil, err
	}
	d.resetIdleTimer()

	hands, err := decodeHands(line)
	if err != nil {
		return nil, err
	}
	return d.config.Filter(hands), nil
}

// Close stops the helper process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) shutdown() error {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.close()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// helperProcess is a running hand_service.py. Each frame is written to stdin
// as a 4-byte big-endian length followed by a JPEG image, and the helper
// answers with one JSON line:
//
//	{"hands":[{"points":[{"x":..,"y":..,"z":..},...],"handedness":"Right","score":0.97}]}
type helperProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startHelper(python, script string, config Config) (*helperProcess, error) {
	cmd := exec.Command(python, script,
		"--max-hands", strconv.Itoa(config.MaxHands),
		"--min-confidence", strconv.FormatFloat(config.MinConfidence, 'f', 2, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start hand service: %w", err)
	}

	return &helperProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

func (p *helperProcess) roundTrip(jpeg []byte) ([]byte, error) {
	msg := make([]byte, 4+len(jpeg))
	binary.BigEndian.PutUint32(msg, uint32(len(jpeg)))
	copy(msg[4:], jpeg)

	if _, err := p.stdin.Write(msg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

func (p *helperProcess) close() error {
	p.stdin.Close()
	return p.cmd.Wait()
}

// encodeFrame JPEG-encodes frame, scaled down to maxEncodeWidth if wider.
func encodeFrame(frame *gocv.Mat) ([]byte, error) {
	src := frame
	if frame.Cols() > maxEncodeWidth {
		scaled := gocv.NewMat()
		defer scaled.Close()
		height := frame.Rows() * maxEncodeWidth / frame.Cols()
		gocv.Resize(*frame, &scaled, image.Pt(maxEncodeWidth, height), 0, 0, gocv.InterpolationArea)
		src = &scaled
	}

	buf, err := gocv.IMEncode(".jpg", *src)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// helperResponse is one line of helper output.
type helperResponse struct {
	Hands []struct {
		Points     []Point3D `json:"points"`
		Handedness string    `json:"handedness"`
		Score      float64   `json:"score"`
	} `json:"hands"`
	Error string `json:"error,omitempty"`
}

// decodeHands parses a helper response. Hands missing any of the 21
// landmarks are dropped, since Features needs the wrist and every joint in
// FeatureOrder.
func decodeHands(line []byte) ([]HandLandmarks, error) {
	var resp helperResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("hand service: %s", resp.Error)
	}

	hands := make([]HandLandmarks, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if len(h.Points) != NumLandmarks {
			continue
		}
		lm := HandLandmarks{
			Handedness: h.Handedness,
			Score:      h.Score,
		}
		copy(lm.Points[:], h.Points)
		hands = append(hands, lm)
	}
	return hands, nil
}

// findServiceScript looks for the helper next to the working directory, the
// executable and in ~/.fingerspell/scripts.
func findServiceScript() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".fingerspell", "scripts", serviceScript),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		filepath.Join("venv", "bin", "python"),
		filepath.Join("..", "venv", "bin", "python"),
		filepath.Join(execDir, "venv", "bin", "python"),
		filepath.Join(os.Getenv("HOME"), ".fingerspell", "venv", "bin", "python"),
	)
}

// firstExisting returns the absolute path of the first candidate that exists.
func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if absPath, err := filepath.Abs(path); err == nil {
			return absPath
		}
		return path
	}
	return ""
}
