// Package intent owns the Decision Intent: the anchor entity for one logical
// verification attempt. Intents are created lazily, never mutated, never
// deleted; every vendor call made under an attempt references its intent.
package intent

import (
	"time"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// Kind classifies what a decision intent is attempting to verify.
type Kind string

const (
	KindOnboardingKYC        Kind = "onboarding_kyc"
	KindOnboardingKYB        Kind = "onboarding_kyb"
	KindWatchlistCheck       Kind = "watchlist_check"
	KindDeviceAttestation    Kind = "device_attestation"
	KindDocumentVerification Kind = "document_verification"
)

// ParseKind converts an externally-supplied string into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindOnboardingKYC, KindOnboardingKYB, KindWatchlistCheck,
		KindDeviceAttestation, KindDocumentVerification:
		return Kind(value), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown intent kind %q", value)
	}
}

// IdempotentPerWorkflow reports whether at most one active intent of this
// kind may exist per (subject, workflow) pair. Get-or-create semantics are
// keyed on that pair for these kinds.
func (k Kind) IdempotentPerWorkflow() bool {
	switch k {
	case KindOnboardingKYC, KindOnboardingKYB, KindDocumentVerification:
		return true
	case KindWatchlistCheck, KindDeviceAttestation:
		// Standing checks re-run on demand outside any workflow.
		return false
	}
	return false
}

// Intent is one verification attempt for a subject.
type Intent struct {
	ID         id.IntentID
	SubjectID  id.SubjectID
	TenantID   id.TenantID
	WorkflowID *id.WorkflowID
	Kind       Kind
	CreatedAt  time.Time
}
