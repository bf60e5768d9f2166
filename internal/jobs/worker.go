package jobs

import (
	"context"
	"errors"
	"log/slog"

	"gigasrt/internal/domain"
)

// Handler runs one job to completion.
type Handler func(ctx context.Context, job domain.Job) error

// Worker drains a Queue in arrival order, one job at a time.
type Worker struct {
	queue  *Queue
	handle Handler
	logger *slog.Logger

	// Policy is consulted after each failure; raise drops the pending jobs.
	Policy func() domain.ErrorPolicy
	// OnDrop receives jobs removed from the queue after a failure under raise.
	OnDrop func(failed domain.Job, dropped []domain.Job)
}

// NewWorker binds a handler to a queue.
func NewWorker(queue *Queue, handle Handler, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{queue: queue, handle: handle, logger: logger}
}

// Run processes jobs until ctx is done or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		err = w.handle(ctx, job)
		w.queue.Done(job)
		if err == nil {
			continue
		}
		w.logger.Error("job failed", "file", job.InputPath, "err", err)
		if w.policy() != domain.ErrorPolicyRaise {
			continue
		}
		dropped := w.queue.Clear()
		if len(dropped) > 0 {
			w.logger.Warn("dropping queued jobs after failure", "count", len(dropped))
		}
		if w.OnDrop != nil {
			w.OnDrop(job, dropped)
		}
	}
}

func (w *Worker) policy() domain.ErrorPolicy {
	if w.Policy == nil {
		return domain.ErrorPolicyIgnore
	}
	return w.Policy()
}
