package asr

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gigasrt/internal/domain"
)

//go:embed worker.py
var workerScript string

// maxLineBytes bounds one protocol line; a multi-hour transcript fits easily.
const maxLineBytes = 64 << 20

// closeGrace is how long Close waits for the worker to exit on its own.
const closeGrace = 5 * time.Second

// process is a started worker with its protocol pipes.
type process struct {
	stdin  io.WriteCloser
	stdout io.Reader
	wait   func() error
	kill   func() error
}

// starter launches the worker process.
type starter func(cfg Config, logger *slog.Logger) (*process, error)

type wireRequest struct {
	ID                int64   `json:"id"`
	Audio             string  `json:"audio"`
	MaxDuration       float64 `json:"max_duration"`
	MinDuration       float64 `json:"min_duration"`
	NewChunkThreshold float64 `json:"new_chunk_threshold"`
}

type wireSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type wireMessage struct {
	Event    string        `json:"event,omitempty"`
	ID       int64         `json:"id,omitempty"`
	Segments []wireSegment `json:"segments,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Bridge is a Transcriber backed by a resident GigaAM worker.
type Bridge struct {
	cfg    Config
	logger *slog.Logger
	proc   *process

	// mu serializes requests: one transcription at a time.
	mu     sync.Mutex
	nextID int64
	closed atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
	messages chan wireMessage
	done     chan struct{}
	exitErr  error
}

// Load starts the worker and blocks until the model is loaded. ctx bounds the
// load only; the worker keeps running until Close.
func Load(ctx context.Context, cfg Config, logger *slog.Logger) (*Bridge, error) {
	return load(ctx, cfg, logger, startPython)
}

func load(ctx context.Context, cfg Config, logger *slog.Logger, start starter) (*Bridge, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !cfg.Model.Valid() {
		return nil, fmt.Errorf("unknown model variant %q", cfg.Model)
	}

	proc, err := start(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start asr worker: %w", err)
	}

	b := &Bridge{
		cfg:      cfg,
		logger:   logger,
		proc:     proc,
		stop:     make(chan struct{}),
		messages: make(chan wireMessage, 1),
		done:     make(chan struct{}),
	}
	go b.readLoop()

	logger.Info("loading gigaam model", "model", cfg.Model, "device", deviceLabel(cfg.Device))
	started := time.Now()

	select {
	case msg, ok := <-b.messages:
		if !ok {
			b.shutdown()
			return nil, fmt.Errorf("load gigaam %s: %w: %v", cfg.Model, ErrWorkerExited, b.exitErr)
		}
		switch msg.Event {
		case "ready":
			logger.Info("gigaam model loaded", "model", cfg.Model, "elapsed", time.Since(started).Round(time.Millisecond))
			return b, nil
		case "error":
			b.shutdown()
			return nil, &LoadError{Model: cfg.Model, Message: msg.Error}
		default:
			b.shutdown()
			return nil, fmt.Errorf("load gigaam %s: unexpected handshake %+v", cfg.Model, msg)
		}
	case <-ctx.Done():
		b.shutdown()
		return nil, ctx.Err()
	}
}

// Transcribe sends one request and waits for its segments. Once sent, a request
// runs to completion; ctx is only checked before sending.
func (b *Bridge) Transcribe(ctx context.Context, audioPath string, opts Options) ([]domain.Segment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-b.done:
		return nil, fmt.Errorf("%w: %v", ErrWorkerExited, b.exitErr)
	default:
	}

	b.nextID++
	req := wireRequest{
		ID:                b.nextID,
		Audio:             audioPath,
		MaxDuration:       opts.MaxDuration,
		MinDuration:       opts.MinDuration,
		NewChunkThreshold: opts.NewChunkThreshold,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := b.proc.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	for msg := range b.messages {
		if msg.ID != req.ID {
			b.logger.Warn("discarding stale asr response", "id", msg.ID, "want", req.ID)
			continue
		}
		if msg.Error != "" {
			return nil, &RecognitionError{AudioPath: audioPath, Message: msg.Error}
		}
		return toSegments(msg.Segments), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrWorkerExited, b.exitErr)
}

// Close stops the worker, giving it a short grace period to exit cleanly.
// A request still in flight fails with ErrWorkerExited.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.shutdown()
	return nil
}

// shutdown closes stdin and kills the worker if it does not exit in time.
func (b *Bridge) shutdown() {
	b.stopOnce.Do(func() {
		close(b.stop)
		_ = b.proc.stdin.Close()
		select {
		case <-b.done:
		case <-time.After(closeGrace):
			b.logger.Warn("asr worker did not exit, killing it")
			_ = b.proc.kill()
			<-b.done
		}
	})
}

// readLoop decodes protocol lines until the worker closes stdout, then reaps it.
func (b *Bridge) readLoop() {
	defer close(b.done)
	defer close(b.messages)

	scanner := bufio.NewScanner(b.proc.stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg wireMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			b.logger.Debug("ignoring non-protocol worker output", "line", line)
			continue
		}
		select {
		case b.messages <- msg:
		case <-b.stop:
		}
	}
	if err := scanner.Err(); err != nil {
		b.logger.Error("read asr worker output", "err", err)
		_ = b.proc.kill()
	}
	b.exitErr = b.proc.wait()
	if b.exitErr != nil {
		b.logger.Debug("asr worker exited", "err", b.exitErr)
	}
}

// startPython runs the embedded worker script with the configured interpreter.
func startPython(cfg Config, logger *slog.Logger) (*process, error) {
	python := strings.TrimSpace(cfg.Python)
	if python == "" {
		python = "python3"
	}
	args := []string{"-u", "-c", workerScript, "--model", string(cfg.Model)}
	if d := strings.TrimSpace(cfg.Device); d != "" {
		args = append(args, "--device", d)
	}

	cmd := exec.Command(python, args...) //nolint:gosec
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1", "PYTHONIOENCODING=utf-8")
	if token := strings.TrimSpace(cfg.HFToken); token != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+token)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// stderr must be drained before Wait, which runs after stdout hits EOF.
	var stderrDone sync.WaitGroup
	stderrDone.Add(1)
	go func() {
		defer stderrDone.Done()
		forwardLines(stderr, logger)
	}()

	return &process{
		stdin:  stdin,
		stdout: stdout,
		wait: func() error {
			stderrDone.Wait()
			return cmd.Wait()
		},
		kill: func() error {
			if cmd.Process == nil {
				return nil
			}
			err := cmd.Process.Kill()
			if errors.Is(err, os.ErrProcessDone) {
				return nil
			}
			return err
		},
	}, nil
}

// forwardLines copies worker diagnostics into the debug log.
func forwardLines(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 16<<10), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \r"); line != "" {
			logger.Debug("gigaam", "line", line)
		}
	}
}

func toSegments(in []wireSegment) []domain.Segment {
	out := make([]domain.Segment, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Segment{
			Start: secondsToDuration(s.Start),
			End:   secondsToDuration(s.End),
			Text:  s.Text,
		})
	}
	return out
}

func deviceLabel(device string) string {
	if strings.TrimSpace(device) == "" {
		return "auto"
	}
	return device
}
