package jobs

import (
	"sync"
	"time"

	"gigasrt/internal/domain"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeQueued  EventType = "queued"
	EventTypeStatus  EventType = "status"
	EventTypeLog     EventType = "log"
	EventTypeResult  EventType = "result"
	EventTypeError   EventType = "error"
	EventTypeDropped EventType = "dropped"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq        int64            `json:"seq"`
	Timestamp  time.Time        `json:"timestamp"`
	JobID      string           `json:"jobId"`
	Type       EventType        `json:"type"`
	Status     domain.JobStatus `json:"status,omitempty"`
	InputPath  string           `json:"inputPath,omitempty"`
	OutputPath string           `json:"outputPath,omitempty"`
	Stage      string           `json:"stage,omitempty"`
	Message    string           `json:"message,omitempty"`
	Command    string           `json:"command,omitempty"`
	Args       []string         `json:"args,omitempty"`
	ExitCode   int              `json:"exitCode,omitempty"`
	Stderr     string           `json:"stderr,omitempty"`
	Segments   int              `json:"segments,omitempty"`
	Pending    int              `json:"pending"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// ForJob returns the retained events of one job in order.
func (b *EventBus) ForJob(jobID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.JobID == jobID {
			out = append(out, event)
		}
	}
	return out
}
