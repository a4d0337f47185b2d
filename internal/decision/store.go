package decision

import (
	"context"

	id "vouch/pkg/domain"
)

// Store persists decision outcomes. Outcomes are immutable once written.
type Store interface {
	// Create inserts an outcome. Returns sentinel.ErrConflict when the
	// intent already has one.
	Create(ctx context.Context, outcome Outcome) error

	// FindByIntent returns the outcome for an intent, or sentinel.ErrNotFound.
	FindByIntent(ctx context.Context, intentID id.IntentID) (*Outcome, error)
}
