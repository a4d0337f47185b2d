package waterfall

import (
	"context"
	"sort"
	"sync"
	"time"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local runs. A single mutex
// stands in for the row lock the PostgreSQL store takes per execution.
type MemoryStore struct {
	mu         sync.Mutex
	executions map[id.ExecutionID]*Execution
	byIntent   map[id.IntentID]id.ExecutionID
	steps      map[id.StepID]*Step
	byExec     map[id.ExecutionID][]id.StepID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[id.ExecutionID]*Execution),
		byIntent:   make(map[id.IntentID]id.ExecutionID),
		steps:      make(map[id.StepID]*Step),
		byExec:     make(map[id.ExecutionID][]id.StepID),
	}
}

func (s *MemoryStore) CreateExecution(ctx context.Context, record Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIntent[record.IntentID]; exists {
		return sentinel.ErrConflict
	}
	stored := record
	stored.Eligible = append([]vendorapi.API(nil), record.Eligible...)
	s.executions[record.ID] = &stored
	s.byIntent[record.IntentID] = record.ID
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, executionID id.ExecutionID) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyExecution(executionID)
}

func (s *MemoryStore) FindByIntent(ctx context.Context, intentID id.IntentID) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	executionID, ok := s.byIntent[intentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.copyExecution(executionID)
}

func (s *MemoryStore) CreateNextStep(ctx context.Context, executionID id.ExecutionID, api vendorapi.API) (*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[executionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if execution.CompletedAt != nil {
		return nil, sentinel.ErrCompleted
	}

	execution.LatestStep++
	step := &Step{
		ID:          id.NewStepID(),
		ExecutionID: executionID,
		Number:      execution.LatestStep,
		API:         api,
		CreatedAt:   time.Now().UTC(),
	}
	s.steps[step.ID] = step
	s.byExec[executionID] = append(s.byExec[executionID], step.ID)

	out := *step
	return &out, nil
}

func (s *MemoryStore) CompleteStep(ctx context.Context, stepID id.StepID, action StepAction, resultID *id.ResultID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if step.CompletedAt != nil {
		return sentinel.ErrCompleted
	}
	now := time.Now().UTC()
	step.Action = action
	step.ResultID = resultID
	step.CompletedAt = &now
	return nil
}

func (s *MemoryStore) CompleteExecution(ctx context.Context, executionID id.ExecutionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[executionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if execution.CompletedAt == nil {
		now := time.Now().UTC()
		execution.CompletedAt = &now
	}
	return nil
}

func (s *MemoryStore) ListSteps(ctx context.Context, executionID id.ExecutionID) ([]Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepIDs := s.byExec[executionID]
	out := make([]Step, 0, len(stepIDs))
	for _, stepID := range stepIDs {
		out = append(out, *s.steps[stepID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) copyExecution(executionID id.ExecutionID) (*Execution, error) {
	execution, ok := s.executions[executionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *execution
	out.Eligible = append([]vendorapi.API(nil), execution.Eligible...)
	return &out, nil
}
