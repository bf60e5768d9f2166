package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gigasrt/internal/domain"
)

func job(id string) domain.Job {
	return domain.Job{ID: id, InputPath: "/m/" + id + ".mp3", Status: domain.JobStatusQueued}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	if err := q.Push(job("a"), job("b")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(job("c")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got.ID != want {
			t.Fatalf("pop = %s, want %s", got.ID, want)
		}
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan domain.Job, 1)
	go func() {
		j, err := q.Pop(context.Background())
		if err == nil {
			got <- j
		}
		close(got)
	}()

	select {
	case j := <-got:
		t.Fatalf("pop returned %+v before push", j)
	case <-time.After(20 * time.Millisecond):
	}

	if err := q.Push(job("late")); err != nil {
		t.Fatalf("push: %v", err)
	}
	select {
	case j := <-got:
		if j.ID != "late" {
			t.Fatalf("pop = %s, want late", j.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not wake after push")
	}
}

func TestQueuePopHonorsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pop error = %v, want deadline exceeded", err)
	}
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := NewQueue()
	if err := q.Push(job("a")); err != nil {
		t.Fatalf("push: %v", err)
	}
	q.Close()

	if err := q.Push(job("b")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("push after close error = %v, want ErrQueueClosed", err)
	}
	if j, err := q.Pop(context.Background()); err != nil || j.ID != "a" {
		t.Fatalf("pop = %+v, %v; want pending job a", j, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("pop error = %v, want ErrQueueClosed", err)
	}
}

func TestQueueClearAndSnapshot(t *testing.T) {
	q := NewQueue()
	_ = q.Push(job("a"), job("b"))

	snap := q.Snapshot()
	snap[0].ID = "mutated"
	if q.Snapshot()[0].ID != "a" {
		t.Fatal("snapshot must be a copy")
	}

	dropped := q.Clear()
	if len(dropped) != 2 || dropped[0].ID != "a" || dropped[1].ID != "b" {
		t.Fatalf("dropped = %+v", dropped)
	}
	if q.Len() != 0 {
		t.Fatalf("len after clear = %d", q.Len())
	}
}

func TestQueuePoppedJobStaysOutstandingUntilDone(t *testing.T) {
	q := NewQueue()
	_ = q.Push(job("a"), job("b"))

	popped, err := q.Pop(context.Background())
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(q.Snapshot()) != 1 {
		t.Fatalf("snapshot = %+v, want only b pending", q.Snapshot())
	}
	got := q.Outstanding()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("outstanding = %+v, want [a b]", got)
	}

	q.Done(popped)
	got = q.Outstanding()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("outstanding after done = %+v, want [b]", got)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = q.Push(job("x"))
			}
		}()
	}
	wg.Wait()
	if q.Len() != 100 {
		t.Fatalf("len = %d, want 100", q.Len())
	}
}
