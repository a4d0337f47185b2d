// Package vendorapi owns the closed set of vendor APIs this engine knows how
// to call. Parsing, signal extraction, and ledger persistence all switch on
// this type, so adding a vendor forces every match site to be revisited.
package vendorapi

import (
	dErrors "vouch/pkg/domain-errors"
)

// API is the stable identifier of one external verification API. It is used
// as the ledger foreign key and as the discriminant for response parsing.
type API string

const (
	// TrustlaneKYC is the primary identity-data (KYC) vendor.
	TrustlaneKYC API = "trustlane_kyc"

	// LumenKYC is the fallback identity-data vendor.
	LumenKYC API = "lumen_kyc"

	// SentriwatchAML is the watchlist / sanctions screening vendor.
	SentriwatchAML API = "sentriwatch_aml"

	// VeriscanDoc is the document capture and processing vendor. It is driven
	// by the document verification state machine, not the flat waterfall.
	VeriscanDoc API = "veriscan_doc"

	// KitesignalDevice is the device attestation vendor.
	KitesignalDevice API = "kitesignal_device"
)

// All lists every supported vendor API in a stable order.
func All() []API {
	return []API{TrustlaneKYC, LumenKYC, SentriwatchAML, VeriscanDoc, KitesignalDevice}
}

// Parse converts an externally-shared identifier into the owned variant set.
// The conversion is lossless in both directions: Parse(a.String()) == a.
func Parse(value string) (API, error) {
	switch API(value) {
	case TrustlaneKYC, LumenKYC, SentriwatchAML, VeriscanDoc, KitesignalDevice:
		return API(value), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown vendor api %q", value)
	}
}

func (a API) String() string { return string(a) }

// Repeatable reports whether calling this API twice for the same subject is
// acceptable. Non-repeatable checks are skipped by the orchestrator when a
// successful result already exists, avoiding duplicate vendor billing.
func (a API) Repeatable() bool {
	switch a {
	case SentriwatchAML, VeriscanDoc:
		// Watchlist screening re-runs on every attempt; document sessions are
		// inherently multi-call.
		return true
	case TrustlaneKYC, LumenKYC, KitesignalDevice:
		return false
	}
	return false
}

// CheckKind groups vendor APIs by the kind of check they perform.
type CheckKind string

const (
	CheckKindKYC      CheckKind = "kyc"
	CheckKindAML      CheckKind = "aml"
	CheckKindDocument CheckKind = "document"
	CheckKindDevice   CheckKind = "device"
)

// Kind returns the check kind for this vendor API.
func (a API) Kind() CheckKind {
	switch a {
	case TrustlaneKYC, LumenKYC:
		return CheckKindKYC
	case SentriwatchAML:
		return CheckKindAML
	case VeriscanDoc:
		return CheckKindDocument
	case KitesignalDevice:
		return CheckKindDevice
	}
	return ""
}
