// Package domain defines the typed identifiers shared across bounded contexts.
//
// Every identifier is a distinct uuid.UUID wrapper so the compiler rejects
// cross-type assignment (passing a SubjectID where an IntentID is expected).
// Parse functions enforce the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "vouch/pkg/domain-errors"
)

type (
	// SubjectID identifies a vaulted identity record (person or business).
	SubjectID uuid.UUID

	// TenantID identifies the customer whose configuration governs a run.
	TenantID uuid.UUID

	// WorkflowID identifies one onboarding workflow instance for a subject.
	WorkflowID uuid.UUID

	// IntentID identifies a decision intent (one logical verification attempt).
	IntentID uuid.UUID

	// RequestID identifies one recorded vendor call.
	RequestID uuid.UUID

	// ResultID identifies the outcome row of one vendor call.
	ResultID uuid.UUID

	// ExecutionID identifies a waterfall execution.
	ExecutionID uuid.UUID

	// StepID identifies a single waterfall step row.
	StepID uuid.UUID

	// DocSessionID identifies a document verification session.
	DocSessionID uuid.UUID

	// RuleSetID identifies one version of a rule set.
	RuleSetID uuid.UUID
)

func parse(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseSubjectID validates and converts a string into a SubjectID.
func ParseSubjectID(value string) (SubjectID, error) {
	parsed, err := parse(value)
	return SubjectID(parsed), err
}

// ParseTenantID validates and converts a string into a TenantID.
func ParseTenantID(value string) (TenantID, error) {
	parsed, err := parse(value)
	return TenantID(parsed), err
}

// ParseWorkflowID validates and converts a string into a WorkflowID.
func ParseWorkflowID(value string) (WorkflowID, error) {
	parsed, err := parse(value)
	return WorkflowID(parsed), err
}

// ParseIntentID validates and converts a string into an IntentID.
func ParseIntentID(value string) (IntentID, error) {
	parsed, err := parse(value)
	return IntentID(parsed), err
}

// ParseDocSessionID validates and converts a string into a DocSessionID.
func ParseDocSessionID(value string) (DocSessionID, error) {
	parsed, err := parse(value)
	return DocSessionID(parsed), err
}

// NewSubjectID returns a fresh random SubjectID.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// NewTenantID returns a fresh random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewWorkflowID returns a fresh random WorkflowID.
func NewWorkflowID() WorkflowID { return WorkflowID(uuid.New()) }

// NewIntentID returns a fresh random IntentID.
func NewIntentID() IntentID { return IntentID(uuid.New()) }

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewResultID returns a fresh random ResultID.
func NewResultID() ResultID { return ResultID(uuid.New()) }

// NewExecutionID returns a fresh random ExecutionID.
func NewExecutionID() ExecutionID { return ExecutionID(uuid.New()) }

// NewStepID returns a fresh random StepID.
func NewStepID() StepID { return StepID(uuid.New()) }

// NewDocSessionID returns a fresh random DocSessionID.
func NewDocSessionID() DocSessionID { return DocSessionID(uuid.New()) }

// NewRuleSetID returns a fresh random RuleSetID.
func NewRuleSetID() RuleSetID { return RuleSetID(uuid.New()) }

func (i SubjectID) String() string    { return uuid.UUID(i).String() }
func (i TenantID) String() string     { return uuid.UUID(i).String() }
func (i WorkflowID) String() string   { return uuid.UUID(i).String() }
func (i IntentID) String() string     { return uuid.UUID(i).String() }
func (i RequestID) String() string    { return uuid.UUID(i).String() }
func (i ResultID) String() string     { return uuid.UUID(i).String() }
func (i ExecutionID) String() string  { return uuid.UUID(i).String() }
func (i StepID) String() string       { return uuid.UUID(i).String() }
func (i DocSessionID) String() string { return uuid.UUID(i).String() }
func (i RuleSetID) String() string    { return uuid.UUID(i).String() }

func (i SubjectID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i TenantID) IsNil() bool     { return uuid.UUID(i) == uuid.Nil }
func (i WorkflowID) IsNil() bool   { return uuid.UUID(i) == uuid.Nil }
func (i IntentID) IsNil() bool     { return uuid.UUID(i) == uuid.Nil }
func (i RequestID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i ResultID) IsNil() bool     { return uuid.UUID(i) == uuid.Nil }
func (i ExecutionID) IsNil() bool  { return uuid.UUID(i) == uuid.Nil }
func (i StepID) IsNil() bool       { return uuid.UUID(i) == uuid.Nil }
func (i DocSessionID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (i RuleSetID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
