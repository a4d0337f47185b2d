package decision

import (
	"context"
	"sync"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	byIntent map[id.IntentID]Outcome
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byIntent: make(map[id.IntentID]Outcome)}
}

func (s *MemoryStore) Create(ctx context.Context, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIntent[outcome.IntentID]; exists {
		return sentinel.ErrConflict
	}
	s.byIntent[outcome.IntentID] = outcome
	return nil
}

func (s *MemoryStore) FindByIntent(ctx context.Context, intentID id.IntentID) (*Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.byIntent[intentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &outcome, nil
}
