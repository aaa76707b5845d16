package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Outbox is implemented by stores that hold events for asynchronous delivery.
type Outbox interface {
	// NextBatch returns up to limit unpublished events, oldest first.
	NextBatch(ctx context.Context, limit int) ([]Event, error)
	// MarkPublished flags events as delivered so they are not re-sent.
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// MemoryStore keeps events in memory for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything appended so far.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
