// Package ledger is the append-only record of every vendor interaction.
// A Request row is written before the wire call; a Result row is written
// after, whether the call succeeded or failed. Rows are never updated or
// deleted, so the ledger is the audit trail for billing disputes and
// decision replays.
package ledger

import (
	"encoding/json"
	"time"

	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
	id "vouch/pkg/domain"
)

// Request records the intention to call a vendor. SubjectID is denormalized
// from the owning intent so per-subject lookups avoid a join at read time.
type Request struct {
	ID        id.RequestID
	IntentID  id.IntentID
	SubjectID id.SubjectID
	API       vendorapi.API
	Params    map[string]string
	CreatedAt time.Time
}

// Result records the outcome of one vendor call. Exactly one of the two
// payload shapes is populated: success rows carry Scrubbed and Sealed,
// error rows carry ErrorCategory and ErrorMessage.
type Result struct {
	ID        id.ResultID
	RequestID id.RequestID
	API       vendorapi.API
	IsError   bool

	// Scrubbed is the PII-free response copy, stored in the clear.
	Scrubbed json.RawMessage

	// Sealed is the full raw payload, encrypted before storage.
	Sealed []byte

	ErrorCategory vendors.ErrorCategory
	ErrorMessage  string

	CreatedAt time.Time
}
