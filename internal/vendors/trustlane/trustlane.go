// Package trustlane adapts the Trustlane identity-data (KYC) API.
package trustlane

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
)

// MatchCode is Trustlane's per-attribute verdict.
type MatchCode string

const (
	MatchCodeMatch      MatchCode = "match"
	MatchCodeMismatch   MatchCode = "mismatch"
	MatchCodeNotChecked MatchCode = "not_checked"
)

// CheckRequest is the typed request for a Trustlane identity check.
type CheckRequest struct {
	Reference    string
	FirstName    string
	LastName     string
	DOB          string
	SSN          string
	AddressLine1 string
	City         string
	State        string
	Zip          string
}

func (CheckRequest) API() vendorapi.API { return vendorapi.TrustlaneKYC }

// Params records only identifiers and presence flags, never the PII itself.
func (r CheckRequest) Params() map[string]string {
	return map[string]string{
		"reference":     r.Reference,
		"ssn_submitted": boolParam(r.SSN != ""),
		"dob_submitted": boolParam(r.DOB != ""),
	}
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// CheckResponse is Trustlane's parsed identity check result.
type CheckResponse struct {
	Summary      string    `json:"summary"` // "id_located" or "id_not_located"
	NameMatch    MatchCode `json:"name_match"`
	DOBMatch     MatchCode `json:"dob_match"`
	SSNMatch     MatchCode `json:"ssn_match"`
	AddressMatch MatchCode `json:"address_match"`
	Deceased     bool      `json:"deceased"`

	raw []byte
}

const SummaryIDLocated = "id_located"

func (*CheckResponse) API() vendorapi.API { return vendorapi.TrustlaneKYC }

// Scrub returns the match codes only; they carry no PII.
func (r *CheckResponse) Scrub() any {
	return struct {
		Summary      string    `json:"summary"`
		NameMatch    MatchCode `json:"name_match"`
		DOBMatch     MatchCode `json:"dob_match"`
		SSNMatch     MatchCode `json:"ssn_match"`
		AddressMatch MatchCode `json:"address_match"`
		Deceased     bool      `json:"deceased"`
	}{r.Summary, r.NameMatch, r.DOBMatch, r.SSNMatch, r.AddressMatch, r.Deceased}
}

func (r *CheckResponse) Raw() []byte { return r.raw }

// Transport performs the wire call. Production wires an HTTP client;
// tests and local runs use SandboxTransport.
type Transport interface {
	IdentityCheck(ctx context.Context, req CheckRequest) (*CheckResponse, error)
}

// Adapter is the vendor call adapter for Trustlane.
type Adapter struct {
	transport Transport
	timeout   time.Duration
}

func NewAdapter(transport Transport, timeout time.Duration) *Adapter {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{transport: transport, timeout: timeout}
}

func (a *Adapter) API() vendorapi.API { return vendorapi.TrustlaneKYC }

// Call performs the identity check within the adapter timeout. All failures
// come back as *vendors.CallError.
func (a *Adapter) Call(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.transport.IdentityCheck(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if resp.raw == nil {
		// Transports that build responses directly still need a raw payload
		// for sealing.
		resp.raw, _ = json.Marshal(resp)
	}
	return resp, nil
}

func classify(err error) error {
	var ce *vendors.CallError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return vendors.NewCallError(vendors.ErrorTimeout, vendorapi.TrustlaneKYC, "identity check timed out", err)
	}
	return vendors.NewCallError(vendors.ErrorTransport, vendorapi.TrustlaneKYC, "identity check failed", err)
}

func (a *Adapter) Retryable(err error) bool {
	return vendors.IsRetryable(err)
}

// RequiredFields lists the minimum subject data for a Trustlane check.
func (a *Adapter) RequiredFields() []vault.Field {
	return []vault.Field{vault.FieldFirstName, vault.FieldLastName, vault.FieldDOB, vault.FieldAddressLine1, vault.FieldZip}
}

// NewRequest builds the typed request from a subject snapshot.
func (a *Adapter) NewRequest(snapshot vault.Snapshot) vendors.Request {
	return CheckRequest{
		Reference:    snapshot.Subject.String(),
		FirstName:    snapshot.Get(vault.FieldFirstName),
		LastName:     snapshot.Get(vault.FieldLastName),
		DOB:          snapshot.Get(vault.FieldDOB),
		SSN:          snapshot.Get(vault.FieldSSN),
		AddressLine1: snapshot.Get(vault.FieldAddressLine1),
		City:         snapshot.Get(vault.FieldCity),
		State:        snapshot.Get(vault.FieldState),
		Zip:          snapshot.Get(vault.FieldZip),
	}
}

func (a *Adapter) Invoke(ctx context.Context, req vendors.Request) (vendors.Response, error) {
	checkReq, ok := req.(CheckRequest)
	if !ok {
		return nil, vendors.NewCallError(vendors.ErrorInternal, vendorapi.TrustlaneKYC, "request type mismatch", nil)
	}
	return a.Call(ctx, checkReq)
}

// ParseResponse parses a raw payload previously returned by this API. The
// orchestrator uses it to replay stored results for skipped checks.
func ParseResponse(raw []byte) (*CheckResponse, error) {
	var resp CheckResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, vendors.NewCallError(vendors.ErrorBadData, vendorapi.TrustlaneKYC, "parse stored response", err)
	}
	resp.raw = raw
	return &resp, nil
}

// SandboxTransport returns deterministic results keyed off the submitted
// data, mimicking the vendor's sandbox environment.
type SandboxTransport struct {
	Latency time.Duration

	// MismatchSSNs lists SSNs the sandbox reports as mismatched.
	MismatchSSNs map[string]bool
}

func (t SandboxTransport) IdentityCheck(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	if t.Latency > 0 {
		select {
		case <-time.After(t.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resp := &CheckResponse{
		Summary:      SummaryIDLocated,
		NameMatch:    MatchCodeMatch,
		DOBMatch:     MatchCodeMatch,
		SSNMatch:     MatchCodeNotChecked,
		AddressMatch: MatchCodeMatch,
	}
	if req.SSN != "" {
		resp.SSNMatch = MatchCodeMatch
		if t.MismatchSSNs[req.SSN] {
			resp.SSNMatch = MatchCodeMismatch
		}
	}
	resp.raw, _ = json.Marshal(resp)
	return resp, nil
}
