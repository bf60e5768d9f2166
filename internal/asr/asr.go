// Package asr talks to the GigaAM long-form recognizer.
//
// The recognizer runs in a resident Python worker so the model is loaded once
// and reused for every file of a run. Requests are served one at a time.
package asr

import (
	"context"
	"errors"
	"math"
	"time"

	"gigasrt/internal/domain"
)

// Options are the long-form segmentation thresholds, in seconds.
type Options struct {
	MaxDuration       float64
	MinDuration       float64
	NewChunkThreshold float64
}

// OptionsFromSettings extracts segmentation thresholds from the run configuration.
func OptionsFromSettings(s domain.Settings) Options {
	return Options{
		MaxDuration:       s.MaxDuration,
		MinDuration:       s.MinDuration,
		NewChunkThreshold: s.NewChunkThreshold,
	}
}

// Config selects the model and the Python environment that hosts it.
type Config struct {
	Python  string
	Model   domain.ModelVariant
	Device  string
	HFToken string
}

// ConfigFromSettings extracts the model selection from the run configuration.
func ConfigFromSettings(s domain.Settings) Config {
	return Config{
		Python:  s.PythonPath,
		Model:   s.Model,
		Device:  s.Device,
		HFToken: s.HFToken,
	}
}

// Transcriber turns a normalized audio file into ordered segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]domain.Segment, error)
	Close() error
}

var (
	// ErrWorkerExited is returned when the Python worker is gone.
	ErrWorkerExited = errors.New("asr worker exited")
	// ErrClosed is returned for calls after Close.
	ErrClosed = errors.New("asr transcriber closed")
)

// RecognitionError is a failure reported by the worker for one request.
type RecognitionError struct {
	AudioPath string
	Message   string
}

func (e *RecognitionError) Error() string {
	return "transcribe " + e.AudioPath + ": " + e.Message
}

// LoadError is a model load failure reported during the worker handshake.
type LoadError struct {
	Model   domain.ModelVariant
	Message string
}

func (e *LoadError) Error() string {
	return "load gigaam " + string(e.Model) + ": " + e.Message
}

// secondsToDuration converts worker timestamps, rounded to the millisecond.
func secondsToDuration(sec float64) time.Duration {
	if math.IsNaN(sec) || sec < 0 {
		return 0
	}
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}
