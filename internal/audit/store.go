package audit

import (
	"context"

	id "vouch/pkg/domain"
)

// Store is an append-only audit sink. Events are never edited or deleted.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject id.SubjectID) ([]Event, error)
}
