package ledger

import (
	"context"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
)

// Store persists ledger rows. All writes are inserts.
type Store interface {
	CreateRequest(ctx context.Context, record Request) error
	CreateResult(ctx context.Context, record Result) error

	GetRequest(ctx context.Context, requestID id.RequestID) (*Request, error)
	GetResult(ctx context.Context, resultID id.ResultID) (*Result, error)

	// LatestSuccessfulResult returns the most recent non-error result for a
	// subject and vendor API, or sentinel.ErrNotFound. The orchestrator uses
	// it to skip non-repeatable checks that already have a usable outcome.
	LatestSuccessfulResult(ctx context.Context, subject id.SubjectID, api vendorapi.API) (*Result, error)

	// ListRequestsByIntent returns an intent's requests in creation order.
	ListRequestsByIntent(ctx context.Context, intentID id.IntentID) ([]Request, error)
}
