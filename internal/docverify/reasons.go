package docverify

import (
	"time"

	"vouch/internal/vendors/veriscan"
)

// Reason is a normalized failure reason encountered during the flow.
// Classification into ignorable and fatal is a static property of the code:
// ignorable reasons keep the session in its current state so the client can
// re-submit a better capture; fatal reasons route the session to Fail.
type Reason string

const (
	ReasonGlare           Reason = "glare"
	ReasonBlur            Reason = "blur"
	ReasonCutoff          Reason = "document_cutoff"
	ReasonTypeMismatch    Reason = "document_type_mismatch"
	ReasonExpired         Reason = "document_expired"
	ReasonUnsupportedType Reason = "unsupported_document"
	ReasonVendorRejected  Reason = "vendor_rejected"
)

// Fatal reports whether the reason terminates the session.
func (r Reason) Fatal() bool {
	switch r {
	case ReasonGlare, ReasonBlur, ReasonCutoff, ReasonTypeMismatch:
		// Recoverable by re-capturing the same input.
		return false
	case ReasonExpired, ReasonUnsupportedType, ReasonVendorRejected:
		return true
	}
	return true
}

// ReasonEntry records one encountered reason together with the state it
// occurred in. The session keeps a rolling list; entries are never removed.
type ReasonEntry struct {
	Reason Reason
	State  State
	At     time.Time
}

// sideFailureReasons maps Veriscan's per-side capture failures onto owned
// reason codes.
var sideFailureReasons = map[veriscan.SideFailure]Reason{
	veriscan.FailureGlare:       ReasonGlare,
	veriscan.FailureBlur:        ReasonBlur,
	veriscan.FailureCutoff:      ReasonCutoff,
	veriscan.FailureExpired:     ReasonExpired,
	veriscan.FailureUnsupported: ReasonUnsupportedType,
}

func reasonsFromSide(failures []veriscan.SideFailure) []Reason {
	out := make([]Reason, 0, len(failures))
	for _, failure := range failures {
		if reason, ok := sideFailureReasons[failure]; ok {
			out = append(out, reason)
		} else {
			out = append(out, ReasonVendorRejected)
		}
	}
	return out
}
