// Package transcribe runs one media file through conversion, recognition and
// subtitle export.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gigasrt/internal/asr"
	"gigasrt/internal/domain"
	"gigasrt/internal/media"
	"gigasrt/internal/srt"
)

// Pipeline stages, reported in order through Request.OnStage.
const (
	StageConverting   = string(domain.JobStatusConverting)
	StageTranscribing = string(domain.JobStatusTranscribing)
	StageWriting      = string(domain.JobStatusWriting)
)

// Request contains one job and the callbacks for its run.
type Request struct {
	InputPath  string
	OutputPath string
	Options    asr.Options
	OnStage    func(stage string)
	OnLog      func(log media.CommandLog)
}

// Result describes the written subtitle file.
type Result struct {
	OutputPath string
	Segments   int
	Converted  bool
	Logs       []media.CommandLog
	Elapsed    time.Duration
}

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string           `json:"stage"`
	Message    string           `json:"message"`
	CommandLog media.CommandLog `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type normalizer interface {
	Normalize(ctx context.Context, inputPath string) (*media.Normalized, error)
}

// Pipeline orchestrates ffmpeg normalization, GigaAM recognition and SRT export.
type Pipeline struct {
	normalizer  normalizer
	transcriber asr.Transcriber
	writeSRT    func(path string, segments []domain.Segment) error
	now         func() time.Time
}

// NewPipeline constructs the production pipeline around a loaded transcriber.
func NewPipeline(n *media.Normalizer, t asr.Transcriber) *Pipeline {
	return &Pipeline{
		normalizer:  n,
		transcriber: t,
		writeSRT:    srt.WriteFile,
		now:         time.Now,
	}
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	n normalizer,
	t asr.Transcriber,
	writeSRT func(path string, segments []domain.Segment) error,
) *Pipeline {
	if writeSRT == nil {
		writeSRT = srt.WriteFile
	}
	return &Pipeline{
		normalizer:  n,
		transcriber: t,
		writeSRT:    writeSRT,
		now:         time.Now,
	}
}

// Run converts, transcribes and writes one subtitle file. Nothing is written
// unless recognition succeeded.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	started := p.now()
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, &PipelineError{
			Stage:   StageConverting,
			Message: "input media path is required",
		}
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Result{}, &PipelineError{
			Stage:   StageWriting,
			Message: "output subtitle path is required",
		}
	}

	emitStage(req.OnStage, StageConverting)
	audio, err := p.normalizer.Normalize(ctx, req.InputPath)
	if err != nil {
		pe := &PipelineError{
			Stage:   StageConverting,
			Message: err.Error(),
			Err:     err,
		}
		var convErr *media.ConversionError
		if errors.As(err, &convErr) {
			pe.CommandLog = convErr.CommandLog
			emitLog(req.OnLog, convErr.CommandLog)
		}
		return Result{}, pe
	}
	defer func() { _ = audio.Cleanup() }()

	result := Result{
		OutputPath: req.OutputPath,
		Converted:  audio.Converted,
	}
	if audio.Log != nil {
		result.Logs = append(result.Logs, *audio.Log)
		emitLog(req.OnLog, *audio.Log)
	}

	emitStage(req.OnStage, StageTranscribing)
	segments, err := p.transcriber.Transcribe(ctx, audio.Path, req.Options)
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   StageTranscribing,
			Message: fmt.Sprintf("gigaam recognition failed: %v", err),
			Err:     err,
		}
	}

	emitStage(req.OnStage, StageWriting)
	if err := p.writeSRT(req.OutputPath, segments); err != nil {
		return Result{}, &PipelineError{
			Stage:   StageWriting,
			Message: fmt.Sprintf("cannot write subtitles: %s", req.OutputPath),
			Err:     err,
		}
	}

	result.Segments = srt.CueCount(segments)
	result.Elapsed = p.now().Sub(started)
	return result, nil
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log media.CommandLog), log media.CommandLog) {
	if cb != nil {
		cb(log)
	}
}
