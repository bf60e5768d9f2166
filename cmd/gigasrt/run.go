package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"gigasrt/frontend"
	"gigasrt/internal/asr"
	"gigasrt/internal/batch"
	"gigasrt/internal/bootstrap"
	"gigasrt/internal/config"
	"gigasrt/internal/diagnostics"
	"gigasrt/internal/discovery"
	"gigasrt/internal/domain"
	"gigasrt/internal/logging"
	"gigasrt/internal/media"
	"gigasrt/internal/transcribe"
)

// runBatch transcribes every selected input sequentially and prints a summary.
func runBatch(ctx context.Context, cmd *cobra.Command, cfg config.Config, inputs []string, output string) error {
	logger := newLogger(cfg)
	settings := cfg.Settings
	out := cmd.OutOrStdout()

	found, err := discovery.Find(inputs, discovery.Options{Recursive: settings.Recursive})
	if err != nil {
		return err
	}
	jobs, planSkipped, err := batch.Plan(found.Files, output)
	if errors.Is(err, batch.ErrOutputNeedsSingleInput) {
		return &usageError{msg: err.Error()}
	}
	if err != nil {
		return err
	}
	found.Skipped = append(found.Skipped, planSkipped...)
	for _, skip := range found.Skipped {
		logger.Warn("skipped", "path", skip.Path, "reason", skip.Reason)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No media files without subtitles found.")
		if len(found.Skipped) > 0 {
			fmt.Fprintln(out, renderSummary(nil, batch.Summary{}, found.Skipped))
		}
		return nil
	}

	logger.Info("loading model", "model", settings.Model, "files", len(jobs))
	transcriber, err := asr.Load(ctx, asr.ConfigFromSettings(settings), logger)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer func() {
		if err := transcriber.Close(); err != nil {
			logger.Warn("close transcriber", "err", err)
		}
	}()

	pipeline := transcribe.NewPipeline(media.NewNormalizer(settings.FFmpegPath), transcriber)
	summary, runErr := runJobs(ctx, batch.NewDriver(pipeline, settings, logger), jobs, out)

	fmt.Fprintln(out, renderSummary(jobs, summary, found.Skipped))
	return runErr
}

// runJobs drives the batch, drawing a progress bar when out is a terminal.
func runJobs(ctx context.Context, driver *batch.Driver, jobs []domain.Job, out io.Writer) (batch.Summary, error) {
	bar := newProgressBar(out, len(jobs))
	if bar != nil {
		driver.OnStage = func(job domain.Job, stage string) {
			bar.Describe(fmt.Sprintf("%-12s %s", stage, filepath.Base(job.InputPath)))
		}
		driver.OnProgress = func(batch.Progress) {
			_ = bar.Add(1)
		}
	}

	summary, err := driver.Run(ctx, jobs)
	if bar != nil {
		_ = bar.Finish()
	}
	return summary, err
}

func newProgressBar(out io.Writer, total int) *progressbar.ProgressBar {
	if !logging.IsTerminal(out) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

// runCheck prints the dependency report; failed checks make the command fail.
func runCheck(cmd *cobra.Command, cfg config.Config) error {
	report := diagnostics.NewChecker().Run(cmd.Context(), cfg.Settings)
	fmt.Fprintln(cmd.OutOrStdout(), renderDiagnostics(report))

	failed := 0
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusFail {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d dependency check(s) failed", failed)
	}
	return nil
}

// runGUI starts the desktop app with the settings resolved from flags.
func runGUI(cfg config.Config, configPath string) error {
	settings := cfg.Settings
	app, err := bootstrap.New(bootstrap.Options{
		Assets:     frontend.Assets,
		ConfigPath: configPath,
		Settings:   &settings,
		Logger:     newLogger(cfg),
		Notify:     true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap app: %w", err)
	}
	return app.Run()
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(logging.Options{Enabled: cfg.Logging.Enabled, Level: cfg.Logging.Level})
}
