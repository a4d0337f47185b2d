package audit

import (
	"context"
	"sync"

	id "vouch/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[id.SubjectID][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[id.SubjectID][]Event)}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SubjectID] = append(s.events[event.SubjectID], event)
	return nil
}

func (s *MemoryStore) ListBySubject(_ context.Context, subject id.SubjectID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[subject]...), nil
}
