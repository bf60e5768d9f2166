package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gigasrt/internal/asr"
	"gigasrt/internal/domain"
	"gigasrt/internal/media"
	"gigasrt/internal/transcribe"
)

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// Report is the outcome of one job.
type Report struct {
	Job      domain.Job
	Segments int
	Elapsed  time.Duration
	Err      error
}

// Summary collects the outcome of a run in job order.
type Summary struct {
	Total     int
	Succeeded []Report
	Failed    []Report
	Elapsed   time.Duration
}

// Progress is delivered after every finished job.
type Progress struct {
	Index  int
	Total  int
	Report Report
}

// JobError is the failure that stopped a run under the raise policy.
type JobError struct {
	Job domain.Job
	Err error
}

// Error names the input and carries the full pipeline diagnostic.
func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Job.InputPath, e.Err)
}

// Unwrap exposes the pipeline error.
func (e *JobError) Unwrap() error {
	return e.Err
}

// Driver runs jobs one after another.
type Driver struct {
	runner  Runner
	policy  domain.ErrorPolicy
	options asr.Options
	logger  *slog.Logger

	// OnStage reports pipeline stage changes of the running job.
	OnStage func(job domain.Job, stage string)
	// OnProgress reports each finished job.
	OnProgress func(p Progress)
}

// NewDriver constructs a driver. An unknown policy falls back to ignore.
func NewDriver(runner Runner, settings domain.Settings, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := settings.ErrorPolicy
	if !policy.Valid() {
		policy = domain.ErrorPolicyIgnore
	}
	return &Driver{
		runner:  runner,
		policy:  policy,
		options: asr.OptionsFromSettings(settings),
		logger:  logger,
	}
}

// Run processes jobs in order. Under the ignore policy every failure is logged
// and the run continues; under raise the first failure is returned as a
// *JobError. A canceled ctx stops the run before the next job.
func (d *Driver) Run(ctx context.Context, jobs []domain.Job) (Summary, error) {
	started := time.Now()
	summary := Summary{Total: len(jobs)}
	finish := func() Summary {
		summary.Elapsed = time.Since(started)
		return summary
	}

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		logger := d.logger.With("file", job.InputPath, "job", fmt.Sprintf("%d/%d", i+1, len(jobs)))
		logger.Info("transcribing")

		result, err := d.runner.Run(ctx, transcribe.Request{
			InputPath:  job.InputPath,
			OutputPath: job.OutputPath,
			Options:    d.options,
			OnStage: func(stage string) {
				logger.Debug("stage", "stage", stage)
				if d.OnStage != nil {
					d.OnStage(job, stage)
				}
			},
			OnLog: func(log media.CommandLog) {
				logger.Debug("command finished", "command", log.Command, "exit", log.ExitCode)
			},
		})

		report := Report{Job: job, Segments: result.Segments, Elapsed: result.Elapsed, Err: err}
		if err != nil {
			report.Job.Status = domain.JobStatusFailed
			report.Job.Error = err.Error()
			summary.Failed = append(summary.Failed, report)
		} else {
			report.Job.Status = domain.JobStatusDone
			summary.Succeeded = append(summary.Succeeded, report)
			logger.Info("subtitles written",
				"output", job.OutputPath,
				"segments", result.Segments,
				"elapsed", result.Elapsed.Round(time.Millisecond))
		}
		if d.OnProgress != nil {
			d.OnProgress(Progress{Index: i + 1, Total: len(jobs), Report: report})
		}

		if err == nil {
			continue
		}
		if d.policy == domain.ErrorPolicyRaise {
			return finish(), &JobError{Job: report.Job, Err: err}
		}
		logger.Error("transcription failed, continuing", "err", err)
	}

	return finish(), nil
}
