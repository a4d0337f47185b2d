package intent

import (
	"context"
	"fmt"
	"sync"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.IntentID]Intent
	byKey map[string]id.IntentID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[id.IntentID]Intent),
		byKey: make(map[string]id.IntentID),
	}
}

func key(subject id.SubjectID, workflow *id.WorkflowID, kind Kind) string {
	if workflow != nil {
		return fmt.Sprintf("wf:%s:%s", workflow.String(), kind)
	}
	return fmt.Sprintf("subj:%s:%s", subject.String(), kind)
}

func (s *MemoryStore) Create(ctx context.Context, record Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(record.SubjectID, record.WorkflowID, record.Kind)
	if record.Kind.IdempotentPerWorkflow() {
		if _, exists := s.byKey[k]; exists {
			return sentinel.ErrConflict
		}
		s.byKey[k] = record.ID
	}
	s.byID[record.ID] = record
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, intentID id.IntentID) (*Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[intentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

func (s *MemoryStore) FindByKey(ctx context.Context, subject id.SubjectID, workflow *id.WorkflowID, kind Kind) (*Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intentID, ok := s.byKey[key(subject, workflow, kind)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := s.byID[intentID]
	return &record, nil
}
