package jobs

import (
	"context"
	"errors"
	"sync"

	"gigasrt/internal/domain"
)

// ErrQueueClosed is returned by Push after Close, and by Pop once a closed
// queue is drained.
var ErrQueueClosed = errors.New("job queue closed")

// Queue is a FIFO of pending jobs shared by the UI thread and the worker.
// A popped job stays outstanding until Done is called for it.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.Job
	active map[string]domain.Job
	closed bool
}

// NewQueue creates an empty open queue.
func NewQueue() *Queue {
	q := &Queue{active: make(map[string]domain.Job)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends jobs in order and wakes the worker.
func (q *Queue) Push(jobs ...domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, jobs...)
	q.cond.Broadcast()
	return nil
}

// Pop blocks until a job is available, the queue is closed and empty, or ctx
// is done.
func (q *Queue) Pop(ctx context.Context) (domain.Job, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return domain.Job{}, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return domain.Job{}, err
		}
		q.cond.Wait()
	}

	job := q.items[0]
	q.items[0] = domain.Job{}
	q.items = q.items[1:]
	q.active[job.ID] = job
	return job, nil
}

// Done releases a job returned by Pop.
func (q *Queue) Done(job domain.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, job.ID)
}

// Clear drops every pending job and returns them in order.
func (q *Queue) Clear() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.items
	q.items = nil
	return dropped
}

// Close stops accepting jobs and wakes blocked readers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Outstanding returns the popped jobs not yet marked Done followed by the
// pending jobs, read under one lock.
func (q *Queue) Outstanding() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.Job, 0, len(q.active)+len(q.items))
	for _, job := range q.active {
		out = append(out, job)
	}
	return append(out, q.items...)
}

// Snapshot returns a copy of the pending jobs in order.
func (q *Queue) Snapshot() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Job(nil), q.items...)
}
