// Package signals normalizes heterogeneous vendor responses into a common
// reason-code vocabulary. Extraction is pure: no I/O, no persistence.
package signals

import (
	"time"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
)

// Group partitions reason codes so downstream consumers can request only the
// groups relevant to their decision.
type Group string

const (
	GroupKYC      Group = "kyc"
	GroupDocument Group = "document"
	GroupBusiness Group = "business"
	GroupAML      Group = "aml"
	GroupDevice   Group = "device"
)

// ReasonCode is a normalized, vendor-agnostic fact extracted from a vendor
// response. Names are stable: historical rule results reference them.
type ReasonCode string

const (
	// KYC codes.
	StatusIDLocated     ReasonCode = "status.id_located"
	IDNotLocated        ReasonCode = "id.not_located"
	SSNDoesNotMatch     ReasonCode = "ssn.does_not_match"
	DOBDoesNotMatch     ReasonCode = "dob.does_not_match"
	NameDoesNotMatch    ReasonCode = "name.does_not_match"
	AddressDoesNotMatch ReasonCode = "address.does_not_match"
	IdentityDeceased    ReasonCode = "identity.deceased"
	PhoneHighRisk       ReasonCode = "phone.high_risk"
	EmailHighRisk       ReasonCode = "email.high_risk"

	// Business codes.
	BusinessNotRegistered ReasonCode = "business.not_registered"
	EINDoesNotMatch       ReasonCode = "ein.does_not_match"

	// AML codes.
	WatchlistHit ReasonCode = "watchlist.hit"
	WatchlistPEP ReasonCode = "watchlist.pep"

	// Document codes.
	DocumentGlare        ReasonCode = "document.glare"
	DocumentBlur         ReasonCode = "document.blur"
	DocumentCutoff       ReasonCode = "document.cutoff"
	DocumentExpired      ReasonCode = "document.expired"
	DocumentUnsupported  ReasonCode = "document.unsupported"
	DocumentTypeMismatch ReasonCode = "document.type_mismatch"
	DocumentLowScore     ReasonCode = "document.low_score"
	SelfieDoesNotMatch   ReasonCode = "selfie.does_not_match"
	DocumentOK           ReasonCode = "document.ok"

	// Device codes.
	DeviceUntrusted ReasonCode = "device.untrusted"
	DeviceEmulator  ReasonCode = "device.emulator"
	DeviceProxy     ReasonCode = "device.proxy"
	DeviceBot       ReasonCode = "device.bot"
	DeviceTrusted   ReasonCode = "device.trusted"
)

var groups = map[ReasonCode]Group{
	StatusIDLocated:     GroupKYC,
	IDNotLocated:        GroupKYC,
	SSNDoesNotMatch:     GroupKYC,
	DOBDoesNotMatch:     GroupKYC,
	NameDoesNotMatch:    GroupKYC,
	AddressDoesNotMatch: GroupKYC,
	IdentityDeceased:    GroupKYC,
	PhoneHighRisk:       GroupKYC,
	EmailHighRisk:       GroupKYC,

	BusinessNotRegistered: GroupBusiness,
	EINDoesNotMatch:       GroupBusiness,

	WatchlistHit: GroupAML,
	WatchlistPEP: GroupAML,

	DocumentGlare:        GroupDocument,
	DocumentBlur:         GroupDocument,
	DocumentCutoff:       GroupDocument,
	DocumentExpired:      GroupDocument,
	DocumentUnsupported:  GroupDocument,
	DocumentTypeMismatch: GroupDocument,
	DocumentLowScore:     GroupDocument,
	SelfieDoesNotMatch:   GroupDocument,
	DocumentOK:           GroupDocument,

	DeviceUntrusted: GroupDevice,
	DeviceEmulator:  GroupDevice,
	DeviceProxy:     GroupDevice,
	DeviceBot:       GroupDevice,
	DeviceTrusted:   GroupDevice,
}

// Group returns the signal group a reason code belongs to.
func (c ReasonCode) Group() Group {
	return groups[c]
}

// Signal ties a reason code to its source vendor and verification result.
// Immutable once created; "latest" signals are determined by recency.
type Signal struct {
	Code     ReasonCode
	API      vendorapi.API
	ResultID id.ResultID
	At       time.Time
}

// Set is a queryable collection of signals.
type Set struct {
	signals []Signal
	codes   map[ReasonCode]bool
}

func NewSet(signals ...Signal) *Set {
	s := &Set{codes: make(map[ReasonCode]bool, len(signals))}
	s.Add(signals...)
	return s
}

func (s *Set) Add(signals ...Signal) {
	for _, sig := range signals {
		s.signals = append(s.signals, sig)
		s.codes[sig.Code] = true
	}
}

// Has reports whether any signal in the set carries the code.
func (s *Set) Has(code ReasonCode) bool {
	return s.codes[code]
}

// All returns the signals in insertion order.
func (s *Set) All() []Signal {
	return append([]Signal(nil), s.signals...)
}

// InGroup returns the subset of signals belonging to the given group.
func (s *Set) InGroup(group Group) []Signal {
	var out []Signal
	for _, sig := range s.signals {
		if sig.Code.Group() == group {
			out = append(out, sig)
		}
	}
	return out
}

// Len returns the number of signals in the set.
func (s *Set) Len() int { return len(s.signals) }
