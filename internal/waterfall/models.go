// Package waterfall sequences vendor calls for one verification attempt. The
// eligible-vendor list is frozen when the execution is created; steps are
// appended one at a time under a row lock so concurrent runners cannot
// allocate the same step number.
package waterfall

import (
	"time"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
)

// StepAction records how a step concluded.
type StepAction string

const (
	// ActionStop means the vendor returned a usable result; no further
	// vendors of the same check kind are needed.
	ActionStop StepAction = "stop"

	// ActionContinue means the vendor failed in a way that advances the
	// waterfall to the next vendor of the same check kind.
	ActionContinue StepAction = "continue"

	// ActionSkip means a prior successful result was reused instead of
	// calling the vendor again.
	ActionSkip StepAction = "skip"

	// ActionError means the vendor failed terminally for this attempt.
	ActionError StepAction = "error"
)

// Execution is one waterfall run over a frozen eligible-vendor list. Seqno
// pins the vault consistency point the list was computed against.
type Execution struct {
	ID          id.ExecutionID
	IntentID    id.IntentID
	Eligible    []vendorapi.API
	Seqno       vault.Seqno
	LatestStep  int
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Step is one vendor call slot within an execution. Numbers start at 1 and
// are gap-free in creation order.
type Step struct {
	ID          id.StepID
	ExecutionID id.ExecutionID
	Number      int
	API         vendorapi.API
	ResultID    *id.ResultID
	Action      StepAction
	CompletedAt *time.Time
	CreatedAt   time.Time
}
