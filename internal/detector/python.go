package detector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrDetectorReported wraps errors the detection script reports in its output
var ErrDetectorReported = errors.New("detector reported error")

const (
	frameHeaderSize = 12
	stopTimeout     = 2 * time.Second
)

// PythonDetector keeps one detection script running and feeds it frames over stdio,
// so the model is loaded once per process rather than once per frame.
//
// The script is started as
//
//	<python> <script> --model <weights>
//
// For every frame it reads a 12-byte big-endian header (uint32 JPEG length,
// float64 confidence) and the JPEG bytes from stdin, then prints one JSON line
// {"labels": ["car", "bus", ...]} or {"labels": [], "error": "..."} on stdout.
// Closing stdin asks the script to exit.
//
// Calls are serialised. A process that dies or desynchronises is restarted on the next call.
type PythonDetector struct {
	command string
	args    []string
	env     []string
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	proc   *pythonProcess
	starts int
}

// PythonOutput is the JSON line printed by the detection script per frame
type PythonOutput struct {
	Labels []string `json:"labels"`
	Error  string   `json:"error,omitempty"`
}

type pythonProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	done   chan struct{} // closed once the process has been reaped
}

// NewPythonDetector creates a detector backed by a Python script. The process starts on Start or the first Detect.
func NewPythonDetector(python, scriptPath, modelPath string, logger *zap.SugaredLogger) *PythonDetector {
	if python == "" {
		python = "python"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PythonDetector{
		command: python,
		args:    []string{scriptPath, "--model", modelPath},
		logger:  logger,
	}
}

// Start launches the script if it is not already running
func (d *PythonDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.running()
	return err
}

// Close asks the script to exit and kills it if it does not within two seconds
func (d *PythonDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stop(false)
	return nil
}

// Detect sends one frame to the script and waits for its labels.
// A cancelled ctx kills the script so a late reply cannot be read by the next call.
func (d *PythonDetector) Detect(ctx context.Context, frame image.Image, confidence float64) ([]string, error) {
	var payload bytes.Buffer
	if err := jpeg.Encode(&payload, frame, &jpeg.Options{Quality: 95}); err != nil {
		return nil, errors.Wrap(err, "failed to encode frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.running()
	if err != nil {
		return nil, err
	}

	type reply struct {
		line []byte
		err  error
	}
	replies := make(chan reply, 1)
	go func() {
		if err := p.send(payload.Bytes(), confidence); err != nil {
			replies <- reply{err: err}
			return
		}
		line, err := p.stdout.ReadBytes('\n')
		replies <- reply{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		d.stop(true)
		<-replies
		return nil, ctx.Err()
	case r := <-replies:
		if r.err != nil {
			d.stop(true)
			return nil, errors.Wrap(r.err, "detector process failed")
		}
		labels, err := ParsePythonOutput(r.line)
		if err != nil && !errors.Is(err, ErrDetectorReported) {
			d.stop(true)
		}
		if err != nil {
			return nil, err
		}
		d.logger.Debugw("frame detected", "boxes", len(labels), "conf", confidence)
		return labels, nil
	}
}

// ParsePythonOutput decodes one line of the script's stdout
func ParsePythonOutput(data []byte) ([]string, error) {
	var out PythonOutput
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil {
		return nil, errors.Wrap(err, "failed to parse detector output")
	}
	if out.Error != "" {
		return nil, errors.Wrap(ErrDetectorReported, out.Error)
	}
	return out.Labels, nil
}

// running returns the live process, spawning a new one if needed. d.mu must be held.
func (d *PythonDetector) running() (*pythonProcess, error) {
	if d.proc != nil {
		select {
		case <-d.proc.done:
			d.logger.Warnw("detector process exited, restarting")
			d.proc = nil
		default:
			return d.proc, nil
		}
	}

	cmd := exec.Command(d.command, d.args...)
	if len(d.env) > 0 {
		cmd.Env = append(os.Environ(), d.env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open detector stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open detector stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open detector stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start detector %s", d.command)
	}

	p := &pythonProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		done:   make(chan struct{}),
	}
	go d.logStderr(stderr)
	go func() {
		err := cmd.Wait()
		if err != nil {
			d.logger.Debugw("detector process exited", "error", err)
		}
		close(p.done)
	}()

	d.proc = p
	d.starts++
	d.logger.Infow("detector process started", "command", d.command, "args", d.args, "pid", cmd.Process.Pid)
	return p, nil
}

// stop ends the current process. d.mu must be held.
func (d *PythonDetector) stop(force bool) {
	p := d.proc
	if p == nil {
		return
	}
	d.proc = nil

	if force {
		_ = p.cmd.Process.Kill()
		<-p.done
		return
	}

	_ = p.stdin.Close()
	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		d.logger.Warnw("detector did not exit, killing", "pid", p.cmd.Process.Pid)
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

func (d *PythonDetector) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d.logger.Debugw("detector", "stderr", scanner.Text())
	}
}

func (p *pythonProcess) send(payload []byte, confidence float64) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	binary.BigEndian.PutUint64(header[4:], math.Float64bits(confidence))
	if _, err := p.stdin.Write(header[:]); err != nil {
		return err
	}
	_, err := p.stdin.Write(payload)
	return err
}
