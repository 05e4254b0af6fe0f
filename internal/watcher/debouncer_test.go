package watcher

import (
	"sync"
	"testing"
	"time"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]FileEvent
}

func (r *flushRecorder) record(events []FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *flushRecorder) last() []FileEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func TestDebouncerCoalescesSamePath(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(50*time.Millisecond, 100, rec.record)
	defer d.Stop()

	now := time.Now()
	d.Add(FileEvent{Path: "/a.py", Type: EventCreate, Timestamp: now})
	d.Add(FileEvent{Path: "/a.py", Type: EventModify, Timestamp: now})
	d.Add(FileEvent{Path: "/b.py", Type: EventModify, Timestamp: now})

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rec.count() != 1 {
		t.Fatalf("got %d flushes, want 1", rec.count())
	}
	events := rec.last()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (one per path)", len(events))
	}
}

func TestDebouncerFlushesOnMaxBatch(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, 2, rec.record)
	defer d.Stop()

	d.Add(FileEvent{Path: "/a.py", Type: EventModify})
	d.Add(FileEvent{Path: "/b.py", Type: EventModify})

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rec.count() != 1 {
		t.Fatalf("got %d flushes, want 1", rec.count())
	}
}

func TestDebouncerStopFlushesPending(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, 100, rec.record)

	d.Add(FileEvent{Path: "/a.py", Type: EventModify})
	d.Stop()

	if rec.count() != 1 {
		t.Fatalf("got %d flushes after Stop, want 1", rec.count())
	}

	// Adds after Stop are dropped.
	d.Add(FileEvent{Path: "/b.py", Type: EventModify})
	if rec.count() != 1 {
		t.Errorf("got %d flushes, want still 1", rec.count())
	}
}

func TestEventClassifier(t *testing.T) {
	c := NewEventClassifier()

	small := make([]FileEvent, 2)
	medium := make([]FileEvent, 5)
	large := make([]FileEvent, 50)

	if got := c.ClassifyBatch(small); got.String() != "high" {
		t.Errorf("small batch priority = %v, want high", got)
	}
	if got := c.ClassifyBatch(medium); got.String() != "normal" {
		t.Errorf("medium batch priority = %v, want normal", got)
	}
	if got := c.ClassifyBatch(large); got.String() != "low" {
		t.Errorf("large batch priority = %v, want low", got)
	}
}
