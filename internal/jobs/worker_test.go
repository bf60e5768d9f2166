package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gigasrt/internal/domain"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (r *recorder) handle(ctx context.Context, j domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, j.ID)
	if r.fail[j.ID] {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestWorkerDrainsInArrivalOrder(t *testing.T) {
	q := NewQueue()
	rec := &recorder{fail: map[string]bool{"b": true}}
	w := NewWorker(q, rec.handle, nil)

	_ = q.Push(job("a"), job("b"), job("c"))
	q.Close()
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := rec.ids()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("handled = %v, want [a b c]", got)
	}
}

func TestWorkerReleasesHandledJobs(t *testing.T) {
	q := NewQueue()
	var during []domain.Job
	w := NewWorker(q, func(ctx context.Context, j domain.Job) error {
		during = q.Outstanding()
		return nil
	}, nil)

	_ = q.Push(job("a"))
	q.Close()
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(during) != 1 || during[0].ID != "a" {
		t.Fatalf("outstanding while handling = %+v, want [a]", during)
	}
	if got := q.Outstanding(); len(got) != 0 {
		t.Fatalf("outstanding after run = %+v, want none", got)
	}
}

func TestWorkerRaiseDropsPending(t *testing.T) {
	q := NewQueue()
	rec := &recorder{fail: map[string]bool{"b": true}}
	w := NewWorker(q, rec.handle, nil)
	w.Policy = func() domain.ErrorPolicy { return domain.ErrorPolicyRaise }

	var failed domain.Job
	var dropped []domain.Job
	w.OnDrop = func(f domain.Job, d []domain.Job) {
		failed = f
		dropped = d
	}

	_ = q.Push(job("a"), job("b"), job("c"), job("d"))
	q.Close()
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := rec.ids()
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("handled = %v, want [a b]", got)
	}
	if failed.ID != "b" || len(dropped) != 2 || dropped[0].ID != "c" || dropped[1].ID != "d" {
		t.Fatalf("failed = %+v dropped = %+v", failed, dropped)
	}
}

func TestWorkerStopsOnContext(t *testing.T) {
	q := NewQueue()
	w := NewWorker(q, (&recorder{}).handle, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerPicksUpJobsPushedWhileRunning(t *testing.T) {
	q := NewQueue()
	handled := make(chan string, 2)
	w := NewWorker(q, func(ctx context.Context, j domain.Job) error {
		handled <- j.ID
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	_ = q.Push(job("first"))
	_ = q.Push(job("second"))
	for _, want := range []string{"first", "second"} {
		select {
		case got := <-handled:
			if got != want {
				t.Fatalf("handled %s, want %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
