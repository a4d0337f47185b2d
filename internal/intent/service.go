package intent

import (
	"context"
	"errors"
	"log/slog"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// Service implements get-or-create semantics for decision intents.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("intent store is required")
	}
	return &Service{store: store, logger: logger}, nil
}

// GetOrCreate returns the existing intent for the idempotency key, creating
// one when absent. Concurrent calls with identical keys never produce two
// active intents: the store's uniqueness constraint rejects the loser, which
// then reads the winner's row.
func (s *Service) GetOrCreate(ctx context.Context, subject id.SubjectID, tenant id.TenantID, workflow *id.WorkflowID, kind Kind) (*Intent, error) {
	if kind.IdempotentPerWorkflow() {
		existing, err := s.store.FindByKey(ctx, subject, workflow, kind)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find decision intent")
		}
	}

	record := Intent{
		ID:         id.NewIntentID(),
		SubjectID:  subject,
		TenantID:   tenant,
		WorkflowID: workflow,
		Kind:       kind,
		CreatedAt:  requestcontext.Now(ctx),
	}
	err := s.store.Create(ctx, record)
	if err == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "decision intent created",
				"intent_id", record.ID.String(),
				"kind", string(kind),
			)
		}
		return &record, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create decision intent")
	}

	// Lost the creation race; the winner's row must exist now.
	existing, findErr := s.store.FindByKey(ctx, subject, workflow, kind)
	if findErr != nil {
		return nil, dErrors.Wrap(findErr, dErrors.CodeInvariantViolation,
			"intent conflict with no stored intent for key")
	}
	return existing, nil
}

// Get returns an intent by ID.
func (s *Service) Get(ctx context.Context, intentID id.IntentID) (*Intent, error) {
	record, err := s.store.Get(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "decision intent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get decision intent")
	}
	return record, nil
}
