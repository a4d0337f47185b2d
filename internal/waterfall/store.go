package waterfall

import (
	"context"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
)

// Store persists waterfall executions and their steps.
type Store interface {
	// CreateExecution inserts a new execution. Returns sentinel.ErrConflict
	// when the intent already has one.
	CreateExecution(ctx context.Context, record Execution) error

	GetExecution(ctx context.Context, executionID id.ExecutionID) (*Execution, error)

	// FindByIntent returns the execution for an intent, or sentinel.ErrNotFound.
	FindByIntent(ctx context.Context, intentID id.IntentID) (*Execution, error)

	// CreateNextStep allocates the next step number under a row lock on the
	// execution, so two runners can never hold the same number. Returns
	// sentinel.ErrCompleted when the execution is already finished.
	CreateNextStep(ctx context.Context, executionID id.ExecutionID, api vendorapi.API) (*Step, error)

	// CompleteStep records a step's action and result reference. A step is
	// completed at most once; a second call returns sentinel.ErrCompleted.
	CompleteStep(ctx context.Context, stepID id.StepID, action StepAction, resultID *id.ResultID) error

	// CompleteExecution marks the execution finished. Idempotent.
	CompleteExecution(ctx context.Context, executionID id.ExecutionID) error

	// ListSteps returns an execution's steps in number order.
	ListSteps(ctx context.Context, executionID id.ExecutionID) ([]Step, error)
}
