// Package decision turns a waterfall run into a pass/fail/review outcome.
// The rule engine reports which rules triggered; the policy that resolves
// the partitioned result into a status lives here.
package decision

import (
	"time"

	"vouch/internal/intent"
	"vouch/internal/rules"
	id "vouch/pkg/domain"
)

// Status is the terminal disposition of a decision intent.
type Status string

const (
	StatusPass   Status = "pass"
	StatusFail   Status = "fail"
	StatusReview Status = "review"
)

// Outcome is the persisted decision for one intent. One outcome per intent;
// re-running the waterfall returns the stored outcome unchanged.
type Outcome struct {
	IntentID   id.IntentID
	SubjectID  id.SubjectID
	TenantID   id.TenantID
	WorkflowID *id.WorkflowID
	Kind       intent.Kind
	Status     Status

	// NoUsableSignal marks runs where every eligible vendor failed; the
	// status is review rather than an error in that case.
	NoUsableSignal bool

	RuleResult rules.Result
	DecidedAt  time.Time
}

// resolveStatus applies the decision policy to a partitioned rule result.
// Fail evidence alone fails; mixed evidence and the absence of any evidence
// both go to manual review.
func resolveStatus(result rules.Result) Status {
	var failTriggered, passTriggered bool
	for _, outcome := range result.Triggered {
		switch outcome.Class {
		case rules.ClassFail:
			failTriggered = true
		case rules.ClassPass:
			passTriggered = true
		}
	}
	switch {
	case failTriggered && passTriggered:
		return StatusReview
	case failTriggered:
		return StatusFail
	case passTriggered:
		return StatusPass
	default:
		return StatusReview
	}
}
