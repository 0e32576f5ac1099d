package audit

import (
	"context"
	"sync"
	"testing"
)

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *memorySink) Save(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) saved() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	sink := &memorySink{}
	worker := NewWorker(sink, 100)
	worker.Start()

	for i := 0; i < 10; i++ {
		worker.Record(NewEntry(
			WithAction("expense.added"),
			WithMetadata(map[string]string{"event_id": "e1"}),
		))
	}
	worker.Shutdown()

	entries := sink.saved()
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries saved, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Action != "expense.added" {
			t.Fatalf("expected action expense.added, got %s", e.Action)
		}
		if e.RecordedAt.IsZero() {
			t.Fatalf("expected recorded timestamp")
		}
	}
}

func TestWorkerDropsWhenBufferFull(t *testing.T) {
	sink := &memorySink{}
	// Not started, so nothing drains the channel.
	worker := NewWorker(sink, 1)

	worker.Record(NewEntry(WithAction("first")))
	worker.Record(NewEntry(WithAction("dropped")))

	if got := len(worker.entryCh); got != 1 {
		t.Fatalf("expected 1 buffered entry, got %d", got)
	}
}
