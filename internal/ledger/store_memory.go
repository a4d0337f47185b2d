package ledger

import (
	"context"
	"sync"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	requests []Request
	results  []Result
	byReqID  map[id.RequestID]int
	byResID  map[id.ResultID]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byReqID: make(map[id.RequestID]int),
		byResID: make(map[id.ResultID]int),
	}
}

func (s *MemoryStore) CreateRequest(ctx context.Context, record Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReqID[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byReqID[record.ID] = len(s.requests)
	s.requests = append(s.requests, record)
	return nil
}

func (s *MemoryStore) CreateResult(ctx context.Context, record Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byResID[record.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byReqID[record.RequestID]; !exists {
		return sentinel.ErrNotFound
	}
	s.byResID[record.ID] = len(s.results)
	s.results = append(s.results, record)
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, requestID id.RequestID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byReqID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := s.requests[i]
	return &record, nil
}

func (s *MemoryStore) GetResult(ctx context.Context, resultID id.ResultID) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byResID[resultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := s.results[i]
	return &record, nil
}

func (s *MemoryStore) LatestSuccessfulResult(ctx context.Context, subject id.SubjectID, api vendorapi.API) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.results) - 1; i >= 0; i-- {
		result := s.results[i]
		if result.IsError || result.API != api {
			continue
		}
		request := s.requests[s.byReqID[result.RequestID]]
		if request.SubjectID == subject {
			return &result, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListRequestsByIntent(ctx context.Context, intentID id.IntentID) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Request
	for _, record := range s.requests {
		if record.IntentID == intentID {
			out = append(out, record)
		}
	}
	return out, nil
}
