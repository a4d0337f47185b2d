package rules

import (
	"context"
	"sort"
	"sync"
	"time"

	"vouch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record // keyed by rule set name
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Record)}
}

func (s *MemoryStore) Activate(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.records[record.Name]
	for _, existing := range versions {
		if existing.Version == record.Version {
			return sentinel.ErrConflict
		}
	}
	for i := range versions {
		versions[i].Active = false
	}
	record.Active = true
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.records[record.Name] = append(versions, record)
	return nil
}

func (s *MemoryStore) Active(ctx context.Context, name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records[name] {
		if record.Active {
			copied := record
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) Versions(ctx context.Context, name string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]Record(nil), s.records[name]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}
