package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gigasrt/internal/asr"
	"gigasrt/internal/domain"
	"gigasrt/internal/media"
	"gigasrt/internal/transcribe"
)

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

type transcriberLoader func(ctx context.Context, cfg asr.Config, logger *slog.Logger) (asr.Transcriber, error)

// errEngineClosed is returned for leases requested after Close.
var errEngineClosed = errors.New("transcription engine closed")

// engine keeps one resident transcriber and rebuilds it only when the model
// selection changes between jobs. A pipeline is leased for the length of a
// job; the model is never swapped while a lease is held.
type engine struct {
	load   transcriberLoader
	logger *slog.Logger

	mu          sync.Mutex
	idle        *sync.Cond
	inUse       int
	closed      bool
	cfg         asr.Config
	transcriber asr.Transcriber
	ffmpegPath  string
	pipeline    pipelineRunner
}

func newEngine(logger *slog.Logger) *engine {
	e := &engine{
		load: func(ctx context.Context, cfg asr.Config, logger *slog.Logger) (asr.Transcriber, error) {
			return asr.Load(ctx, cfg, logger)
		},
		logger: logger,
	}
	e.idle = sync.NewCond(&e.mu)
	return e
}

// pipelineFor leases a pipeline for settings, loading the model on first use.
// When the model settings differ from the resident model it waits until every
// earlier lease is released before reloading. The caller must call release
// once the pipeline is no longer used.
func (e *engine) pipelineFor(ctx context.Context, settings domain.Settings) (pipelineRunner, func(), error) {
	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.idle.Broadcast()
	})
	defer stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := asr.ConfigFromSettings(settings)
	for !e.closed && e.transcriber != nil && e.cfg != cfg && e.inUse > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		e.idle.Wait()
	}
	if e.closed {
		return nil, nil, errEngineClosed
	}

	if e.transcriber != nil && e.cfg != cfg {
		e.logger.Info("model settings changed, reloading", "model", cfg.Model)
		if err := e.transcriber.Close(); err != nil {
			e.logger.Warn("close previous transcriber", "err", err)
		}
		e.transcriber = nil
		e.pipeline = nil
	}
	if e.transcriber == nil {
		tr, err := e.load(ctx, cfg, e.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("load model: %w", err)
		}
		e.transcriber = tr
		e.cfg = cfg
		e.pipeline = nil
	}
	if e.pipeline == nil || e.ffmpegPath != settings.FFmpegPath {
		e.pipeline = transcribe.NewPipeline(media.NewNormalizer(settings.FFmpegPath), e.transcriber)
		e.ffmpegPath = settings.FFmpegPath
	}

	e.inUse++
	var once sync.Once
	release := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.inUse--
			e.idle.Broadcast()
		})
	}
	return e.pipeline, release, nil
}

// Close stops the resident transcriber even if a job still holds a lease;
// the job then fails with the bridge error. Later leases are refused.
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.idle.Broadcast()
	if e.transcriber == nil {
		return nil
	}
	err := e.transcriber.Close()
	e.transcriber = nil
	e.pipeline = nil
	return err
}
