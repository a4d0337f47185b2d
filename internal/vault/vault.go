// Package vault defines the boundary to the encrypted PII vault and to tenant
// configuration. The vault itself is an external collaborator; this package
// only specifies the contracts the decisioning core consumes, plus in-memory
// fakes for tests and local runs.
package vault

//go:generate mockgen -source=vault.go -destination=mocks/mocks.go -package=mocks FieldService,CompletenessQuery,EntitlementQuery

import (
	"context"
	"errors"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
)

// Field identifies one vaulted field of a subject record.
type Field string

const (
	FieldFirstName    Field = "first_name"
	FieldLastName     Field = "last_name"
	FieldDOB          Field = "dob"
	FieldSSN          Field = "ssn"
	FieldAddressLine1 Field = "address_line_1"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldZip          Field = "zip"
	FieldPhone        Field = "phone_number"
	FieldEmail        Field = "email"
	FieldBusinessName Field = "business_name"
	FieldEIN          Field = "ein"
	FieldUserAgent    Field = "user_agent"
	FieldIPAddress    Field = "ip_address"
)

// Seqno identifies a consistent snapshot of a subject's data. It is a
// monotonic counter bumped on every vault write.
type Seqno int64

// ErrDecryptionUnavailable is returned when the vault cannot produce
// plaintext for the requested fields. The orchestrator treats this as fatal
// for the current attempt.
var ErrDecryptionUnavailable = errors.New("vault decryption unavailable")

// ErrStaleSeqno is returned when the requested consistency point no longer
// matches the subject's current data.
var ErrStaleSeqno = errors.New("subject data changed since snapshot")

// FieldService returns decrypted plaintext for a set of field identifiers at
// a given consistency point.
type FieldService interface {
	// GetFields decrypts the requested fields. Missing fields are absent from
	// the returned map, not an error.
	GetFields(ctx context.Context, subject id.SubjectID, fields []Field, seqno Seqno) (map[Field]string, error)

	// CurrentSeqno returns the subject's current consistency point.
	CurrentSeqno(ctx context.Context, subject id.SubjectID) (Seqno, error)
}

// CompletenessQuery reports which fields a subject has populated, without
// decrypting anything. Used to compute the frozen eligible-vendor list.
type CompletenessQuery interface {
	PopulatedFields(ctx context.Context, subject id.SubjectID) (map[Field]bool, error)
}

// EntitlementQuery reports which vendors a tenant is permitted to use.
// Absence of entitlement removes a vendor from eligibility rather than
// erroring.
type EntitlementQuery interface {
	EnabledVendors(ctx context.Context, tenant id.TenantID) (map[vendorapi.API]bool, error)
}

// Snapshot is a decrypted view of a subject at one consistency point. It is
// what vendor adapters build their request payloads from.
type Snapshot struct {
	Subject   id.SubjectID
	Seqno     Seqno
	Fields    map[Field]string
	Submitted map[Field]bool
}

// Get returns a field's plaintext, or "" when absent.
func (s Snapshot) Get(field Field) string {
	return s.Fields[field]
}

// Has reports whether the subject actually submitted the field. Signal
// extraction uses this: a vendor's SSN-mismatch code only means something if
// an SSN was submitted at all.
func (s Snapshot) Has(field Field) bool {
	return s.Submitted[field]
}
