package docverify

import (
	"context"

	id "vouch/pkg/domain"
)

// Store persists document sessions. One session per intent.
type Store interface {
	// Create inserts a new session. Returns sentinel.ErrConflict when the
	// intent already has one.
	Create(ctx context.Context, session Session) error

	Get(ctx context.Context, sessionID id.DocSessionID) (*Session, error)

	// FindByIntent returns the session for an intent, or sentinel.ErrNotFound.
	FindByIntent(ctx context.Context, intentID id.IntentID) (*Session, error)

	// Update persists the session's mutable flow state.
	Update(ctx context.Context, session *Session) error
}
