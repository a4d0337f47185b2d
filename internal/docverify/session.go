package docverify

import (
	"time"

	"vouch/internal/vendors/veriscan"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// Kind configures a session's flow shape.
type Kind string

const (
	// KindDocument captures both document sides without a selfie.
	KindDocument Kind = "document"

	// KindDocumentWithSelfie additionally captures a selfie and runs face
	// matching against the document portrait.
	KindDocumentWithSelfie Kind = "document_with_selfie"
)

// ParseKind converts an externally-supplied string into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindDocument, KindDocumentWithSelfie:
		return Kind(value), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown document session kind %q", value)
	}
}

// RequiresSelfie reports whether this kind's flow includes selfie capture
// and face matching.
func (k Kind) RequiresSelfie() bool {
	return k == KindDocumentWithSelfie
}

// Session holds the evolving context of one document-capture flow. It is
// mutated only by successful step transitions; failed captures attach a
// reason and leave the state unchanged.
type Session struct {
	ID        id.DocSessionID
	IntentID  id.IntentID
	SubjectID id.SubjectID
	TenantID  id.TenantID
	Kind      Kind
	State     State

	// VendorSessionID references the Veriscan capture session. The client
	// token is not stored here; it lives in the credential cache with the
	// vendor's TTL.
	VendorSessionID string

	FrontDocType   veriscan.DocType
	BackDocType    veriscan.DocType
	FrontUploaded  bool
	BackUploaded   bool
	ConsentGiven   bool
	SelfieUploaded bool

	Reasons []ReasonEntry

	DocumentScore  float64
	FaceMatchScore float64
	ScoresReady    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddReasons appends reasons against the current state and reports whether
// any of them is fatal.
func (s *Session) AddReasons(reasons []Reason, at time.Time) bool {
	fatal := false
	for _, reason := range reasons {
		s.Reasons = append(s.Reasons, ReasonEntry{Reason: reason, State: s.State, At: at})
		if reason.Fatal() {
			fatal = true
		}
	}
	return fatal
}

// OutstandingReasons returns the ignorable reasons attached to the current
// state: the list a client should resolve by re-submitting input.
func (s *Session) OutstandingReasons() []Reason {
	var out []Reason
	for _, entry := range s.Reasons {
		if entry.State == s.State && !entry.Reason.Fatal() {
			out = append(out, entry.Reason)
		}
	}
	return out
}

// Input carries the client-submitted material for the current request. It is
// transient: images pass through to the vendor and are never persisted.
type Input struct {
	FrontImage  []byte
	BackImage   []byte
	Consent     bool
	SelfieImage []byte
}
