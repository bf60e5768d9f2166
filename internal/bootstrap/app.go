// Package bootstrap wires the desktop GUI: a drop target feeding a FIFO job
// queue that one background worker drains through the subtitle pipeline.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"gigasrt/internal/asr"
	"gigasrt/internal/batch"
	"gigasrt/internal/config"
	"gigasrt/internal/diagnostics"
	"gigasrt/internal/discovery"
	"gigasrt/internal/domain"
	"gigasrt/internal/jobs"
	"gigasrt/internal/media"
	"gigasrt/internal/notify"
	"gigasrt/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// jobEventName is the runtime event the frontend subscribes to.
const jobEventName = "job:event"

const reasonAlreadyQueued = "already queued"

// Options configures a GUI instance.
type Options struct {
	Assets fs.FS
	// ConfigPath is the TOML file settings are loaded from and saved to.
	ConfigPath string
	// Settings, when set, replaces the stored settings for this session
	// (the CLI passes its resolved flags here).
	Settings *domain.Settings
	Logger   *slog.Logger
	Notify   bool
}

// EnqueueResult reports what a drop or picker selection added to the queue.
type EnqueueResult struct {
	Jobs    []domain.Job     `json:"jobs"`
	Skipped []discovery.Skip `json:"skipped"`
	Pending int              `json:"pending"`
}

// App wires configuration, the job queue, the pipeline and UI runtime callbacks.
type App struct {
	Store       config.Store
	Jobs        *jobs.Manager
	Queue       *jobs.Queue
	Diagnostics domain.DiagnosticReport

	assets    fs.FS
	checker   *diagnostics.Checker
	installer *installer
	notifier  *notify.Notifier
	logger    *slog.Logger
	events    *jobs.EventBus

	// pipelineFor leases the pipeline for the settings of the next job.
	pipelineFor func(ctx context.Context, settings domain.Settings) (pipelineRunner, func(), error)
	closeEngine func() error

	mu           sync.Mutex
	settings     domain.Settings
	runtimeCtx   context.Context
	stopWorker   context.CancelFunc
	workerDone   chan struct{}
	shutdownOnce sync.Once
}

// New builds the application with persisted settings and startup diagnostics.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = config.DefaultConfigPath()
	}

	store := config.NewTOMLStore(path)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	logger.Info("settings loaded", "path", store.Path())
	if opts.Settings != nil {
		// Already resolved against env and flags by the caller.
		settings = *opts.Settings
	} else {
		settings = config.ApplyEnv(settings)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(context.Background(), settings)

	eng := newEngine(logger)
	return &App{
		Store:       store,
		Jobs:        jobs.NewManager(),
		Queue:       jobs.NewQueue(),
		Diagnostics: report,
		assets:      opts.Assets,
		checker:     checker,
		installer:   newInstaller(),
		notifier:    notify.New(opts.Notify),
		logger:      logger,
		events:      jobs.NewEventBus(1000),
		pipelineFor: eng.pipelineFor,
		closeEngine: eng.Close,
		settings:    settings,
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "GigaSRT",
		Width:       1080,
		Height:      740,
		AssetServer: assetOptions,
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     true,
			DisableWebViewDrop: true,
		},
		OnStartup:  a.Startup,
		OnShutdown: a.Shutdown,
		Bind:       []interface{}{a},
	})
}

// Startup stores the Wails runtime context, registers the drop target and
// starts the queue worker.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	wailsruntime.OnFileDrop(ctx, func(_, _ int, paths []string) {
		if _, err := a.EnqueuePaths(paths); err != nil {
			a.logger.Error("enqueue dropped files", "err", err)
		}
	})
	a.startWorker(ctx)
}

// Shutdown stops the worker and the Python process. A transcription in
// flight is aborted rather than awaited and its job fails.
func (a *App) Shutdown(context.Context) {
	a.shutdownOnce.Do(func() {
		a.Queue.Close()
		a.mu.Lock()
		stop := a.stopWorker
		done := a.workerDone
		a.runtimeCtx = nil
		a.mu.Unlock()

		if stop != nil {
			stop()
		}
		if a.closeEngine != nil {
			if err := a.closeEngine(); err != nil {
				a.logger.Warn("close transcriber", "err", err)
			}
		}
		if done != nil {
			<-done
		}
	})
}

// startWorker launches the single background consumer of the queue.
func (a *App) startWorker(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	a.mu.Lock()
	a.stopWorker = cancel
	a.workerDone = done
	a.mu.Unlock()

	worker := jobs.NewWorker(a.Queue, a.runJob, a.logger)
	worker.Policy = func() domain.ErrorPolicy { return a.currentSettings().ErrorPolicy }
	worker.OnDrop = a.onDrop

	go func() {
		defer close(done)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("queue worker stopped", "err", err)
		}
	}()
}

// EnqueuePaths expands dropped or picked paths and queues every selected file.
func (a *App) EnqueuePaths(paths []string) (EnqueueResult, error) {
	settings := a.currentSettings()
	found, err := discovery.Find(paths, discovery.Options{Recursive: settings.Recursive})
	if err != nil {
		return EnqueueResult{}, err
	}

	// Jobs popped by the worker but not started yet are still outstanding.
	outstanding := a.Queue.Outstanding()
	pending := make(map[string]struct{}, len(outstanding))
	claimed := make(map[string]string, len(outstanding))
	for _, job := range outstanding {
		pending[job.InputPath] = struct{}{}
		claimed[job.OutputPath] = job.InputPath
	}

	fresh := make([]string, 0, len(found.Files))
	for _, file := range found.Files {
		if _, dup := pending[file]; dup {
			found.Skipped = append(found.Skipped, discovery.Skip{Path: file, Reason: reasonAlreadyQueued})
			continue
		}
		fresh = append(fresh, file)
	}
	queued, shared := batch.PlanSiblings(fresh, claimed)
	found.Skipped = append(found.Skipped, shared...)
	if err := a.Queue.Push(queued...); err != nil {
		return EnqueueResult{}, err
	}

	depth := a.Queue.Len()
	for _, job := range queued {
		a.publishEvent(jobs.Event{
			JobID:      job.ID,
			Type:       jobs.EventTypeQueued,
			Status:     domain.JobStatusQueued,
			InputPath:  job.InputPath,
			OutputPath: job.OutputPath,
			Message:    "Queued",
			Pending:    depth,
		})
	}
	for _, skip := range found.Skipped {
		a.logger.Info("skipped", "path", skip.Path, "reason", skip.Reason)
	}
	return EnqueueResult{Jobs: queued, Skipped: found.Skipped, Pending: depth}, nil
}

// runJob executes one queued job and maps outcomes to job events.
func (a *App) runJob(ctx context.Context, job domain.Job) error {
	if err := a.Jobs.Start(job); err != nil {
		return err
	}
	a.publishStatus(job, domain.JobStatusConverting, "Job started")

	settings := a.currentSettings()
	pipeline, release, err := a.pipelineFor(ctx, settings)
	if err != nil {
		return a.failJob(job, err)
	}
	defer release()

	result, err := pipeline.Run(ctx, transcribe.Request{
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Options:    asr.OptionsFromSettings(settings),
		OnStage: func(stage string) {
			status := domain.JobStatus(stage)
			if err := a.Jobs.Transition(status); err == nil {
				a.publishStatus(job, status, "Running "+stage+" stage")
			}
		},
		OnLog: func(log media.CommandLog) {
			a.publishEvent(jobs.Event{
				JobID:    job.ID,
				Type:     jobs.EventTypeLog,
				Message:  "Command completed",
				Command:  log.Command,
				Args:     log.Args,
				ExitCode: log.ExitCode,
				Stderr:   log.Stderr,
			})
		},
	})
	if err != nil {
		return a.failJob(job, err)
	}

	if err := a.Jobs.Transition(domain.JobStatusDone); err == nil {
		a.publishStatus(job, domain.JobStatusDone, "Job completed")
	}
	a.publishEvent(jobs.Event{
		JobID:      job.ID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusDone,
		InputPath:  job.InputPath,
		OutputPath: result.OutputPath,
		Segments:   result.Segments,
		Message:    "Subtitles written",
		Pending:    a.Queue.Len(),
	})
	if err := a.notifier.Done(job.InputPath, result.Segments); err != nil {
		a.logger.Debug("notification failed", "err", err)
	}
	return nil
}

// failJob records a failure and returns it for the worker's error policy.
func (a *App) failJob(job domain.Job, err error) error {
	_ = a.Jobs.Fail(err)

	event := jobs.Event{
		JobID:     job.ID,
		Type:      jobs.EventTypeError,
		Status:    domain.JobStatusFailed,
		InputPath: job.InputPath,
		Message:   err.Error(),
		Pending:   a.Queue.Len(),
	}
	var pipelineErr *transcribe.PipelineError
	if errors.As(err, &pipelineErr) {
		event.Stage = pipelineErr.Stage
		event.Command = pipelineErr.CommandLog.Command
		event.ExitCode = pipelineErr.CommandLog.ExitCode
		event.Stderr = pipelineErr.CommandLog.Stderr
	}
	a.publishStatus(job, domain.JobStatusFailed, "Job failed")
	a.publishEvent(event)
	if nerr := a.notifier.Failed(job.InputPath, err); nerr != nil {
		a.logger.Debug("notification failed", "err", nerr)
	}
	return err
}

// onDrop reports the jobs discarded after a failure under the raise policy.
func (a *App) onDrop(failed domain.Job, dropped []domain.Job) {
	for _, job := range dropped {
		a.publishEvent(jobs.Event{
			JobID:     job.ID,
			Type:      jobs.EventTypeDropped,
			InputPath: job.InputPath,
			Message:   "Dropped after " + filepath.Base(failed.InputPath) + " failed",
		})
	}
	if len(dropped) > 0 {
		if err := a.notifier.Dropped(len(dropped)); err != nil {
			a.logger.Debug("notification failed", "err", err)
		}
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings returns the settings the next job will use.
func (a *App) GetSettings() domain.Settings {
	return a.currentSettings()
}

// SaveSettings validates and persists settings, then refreshes diagnostics.
// The running job keeps its settings; the next job picks up the new ones.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.NormalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	normalized = config.ApplyEnv(normalized)

	a.mu.Lock()
	a.settings = normalized
	a.mu.Unlock()

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reruns dependency checks for the current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	return a.refreshDiagnosticsFromSettings(a.currentSettings())
}

// PickMediaFiles opens a native dialog and queues the selected files.
func (a *App) PickMediaFiles() (EnqueueResult, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return EnqueueResult{}, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media files",
		Filters: mediaDialogFilter(),
	})
	if err != nil {
		return EnqueueResult{}, err
	}
	if len(paths) == 0 {
		return EnqueueResult{Pending: a.Queue.Len()}, nil
	}
	return a.EnqueuePaths(paths)
}

// PickDirectory opens a native directory picker and queues its media files.
func (a *App) PickDirectory() (EnqueueResult, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return EnqueueResult{}, err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select a folder with media files",
	})
	if err != nil {
		return EnqueueResult{}, err
	}
	if strings.TrimSpace(path) == "" {
		return EnqueueResult{Pending: a.Queue.Len()}, nil
	}
	return a.EnqueuePaths([]string{path})
}

// OpenOutputFolder opens the folder containing the given subtitle file.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}
	return openInFileManager(openPath)
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// QueueSnapshot returns the pending jobs in the order they will run.
func (a *App) QueueSnapshot() []domain.Job {
	return a.Queue.Snapshot()
}

// ClearQueue drops every pending job.
func (a *App) ClearQueue() int {
	dropped := a.Queue.Clear()
	for _, job := range dropped {
		a.publishEvent(jobs.Event{
			JobID:     job.ID,
			Type:      jobs.EventTypeDropped,
			InputPath: job.InputPath,
			Message:   "Removed from queue",
		})
	}
	return len(dropped)
}

// JobHistory returns the retained events of one job, oldest first.
func (a *App) JobHistory(jobID string) []jobs.Event {
	return a.events.ForJob(jobID)
}

// NotificationsEnabled reports whether desktop notifications are shown.
func (a *App) NotificationsEnabled() bool {
	return a.notifier.Enabled()
}

// SetNotifications turns desktop notifications on or off for this session.
func (a *App) SetNotifications(enabled bool) bool {
	a.notifier.SetEnabled(enabled)
	return a.notifier.Enabled()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	if a.checker == nil {
		return a.GetDiagnostics()
	}
	report := a.checker.Run(context.Background(), settings)
	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(job domain.Job, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:     job.ID,
		Type:      jobs.EventTypeStatus,
		Status:    status,
		InputPath: job.InputPath,
		Message:   message,
		Pending:   a.Queue.Len(),
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, jobEventName, published)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// mediaDialogFilter builds the picker filter from the discovery extension list.
func mediaDialogFilter() []wailsruntime.FileFilter {
	exts := discovery.Extensions()
	patterns := make([]string, 0, len(exts))
	for _, ext := range exts {
		patterns = append(patterns, "*"+ext)
	}
	return []wailsruntime.FileFilter{
		{DisplayName: "Media files", Pattern: strings.Join(patterns, ";")},
		{DisplayName: "All files", Pattern: "*"},
	}
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
