package intent

import (
	"context"

	id "vouch/pkg/domain"
)

// Store persists decision intents. Creation is guarded by a uniqueness
// constraint on the idempotency key, not a lock: creation is rare relative
// to reads, so the service retries on conflict instead of serializing.
type Store interface {
	// Create inserts a new intent. Returns sentinel.ErrConflict when an
	// intent with the same idempotency key already exists.
	Create(ctx context.Context, record Intent) error

	// Get returns an intent by ID.
	Get(ctx context.Context, intentID id.IntentID) (*Intent, error)

	// FindByKey returns the intent for an idempotency key, or
	// sentinel.ErrNotFound. For workflow-scoped kinds the key is
	// (workflow, kind); for workflow-less kinds it is (subject, kind).
	FindByKey(ctx context.Context, subject id.SubjectID, workflow *id.WorkflowID, kind Kind) (*Intent, error)
}
