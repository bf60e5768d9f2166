package jobs

import "testing"

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Message: "1"})
	bus.Publish(Event{Type: EventTypeStatus, Message: "2"})
	bus.Publish(Event{Type: EventTypeStatus, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestEventBusForJob(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{JobID: "a", Type: EventTypeQueued})
	bus.Publish(Event{JobID: "b", Type: EventTypeQueued})
	bus.Publish(Event{JobID: "a", Type: EventTypeResult, Segments: 4})

	events := bus.ForJob("a")
	if len(events) != 2 || events[1].Type != EventTypeResult || events[1].Segments != 4 {
		t.Fatalf("events = %+v", events)
	}
	if got := bus.ForJob("missing"); len(got) != 0 {
		t.Fatalf("unknown job events = %+v", got)
	}
}
