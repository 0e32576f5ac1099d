package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one record in the audit trail: something that happened to the
// ledger (an expense recorded, a plan computed, a user registered) together
// with enough context to replay the story later.
type Entry struct {
	ID         uuid.UUID         `json:"id,omitempty"`
	Action     string            `json:"action,omitempty"`
	Data       any               `json:"data,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

type EntryOption func(*Entry)

func WithAction(action string) EntryOption {
	return func(e *Entry) {
		e.Action = action
	}
}

func WithData(data any) EntryOption {
	return func(e *Entry) {
		e.Data = data
	}
}

func WithMetadata(metadata map[string]string) EntryOption {
	return func(e *Entry) {
		e.Metadata = metadata
	}
}

func NewEntry(opts ...EntryOption) Entry {
	e := Entry{
		ID:         uuid.New(),
		RecordedAt: time.Now().UTC(),
		Metadata:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Sink persists audit entries somewhere durable.
type Sink interface {
	Save(ctx context.Context, e Entry) error
}
