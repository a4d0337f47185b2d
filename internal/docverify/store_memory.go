package docverify

import (
	"context"
	"sync"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.DocSessionID]Session
	byIntent map[id.IntentID]id.DocSessionID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[id.DocSessionID]Session),
		byIntent: make(map[id.IntentID]id.DocSessionID),
	}
}

func (s *MemoryStore) Create(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIntent[session.IntentID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = session
	s.byIntent[session.IntentID] = session.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID id.DocSessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := session
	out.Reasons = append([]ReasonEntry(nil), session.Reasons...)
	return &out, nil
}

func (s *MemoryStore) FindByIntent(ctx context.Context, intentID id.IntentID) (*Session, error) {
	s.mu.RLock()
	sessionID, ok := s.byIntent[intentID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.Get(ctx, sessionID)
}

func (s *MemoryStore) Update(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	stored := *session
	stored.Reasons = append([]ReasonEntry(nil), session.Reasons...)
	s.sessions[session.ID] = stored
	return nil
}
