// Package lumen adapts the Lumen identity-data API, the fallback KYC vendor.
package lumen

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
)

// VerifyRequest is the typed request for a Lumen identity verification.
type VerifyRequest struct {
	Reference string
	FullName  string
	DOB       string
	SSN       string
	Address   string
	Phone     string
	Email     string
}

func (VerifyRequest) API() vendorapi.API { return vendorapi.LumenKYC }

func (r VerifyRequest) Params() map[string]string {
	params := map[string]string{"reference": r.Reference}
	if r.SSN != "" {
		params["ssn_submitted"] = "true"
	}
	if r.Phone != "" {
		params["phone_submitted"] = "true"
	}
	return params
}

// VerifyResponse is Lumen's parsed result. Lumen reports a flat list of
// result codes rather than per-attribute verdicts.
type VerifyResponse struct {
	Found       bool     `json:"found"`
	ResultCodes []string `json:"result_codes"`

	raw []byte
}

// Lumen result codes referenced by signal extraction.
const (
	CodeSSNMismatch     = "R201"
	CodeDOBMismatch     = "R203"
	CodeAddressMismatch = "R207"
	CodePhoneHighRisk   = "R310"
	CodeEmailHighRisk   = "R311"
)

func (*VerifyResponse) API() vendorapi.API { return vendorapi.LumenKYC }

func (r *VerifyResponse) Scrub() any {
	return struct {
		Found       bool     `json:"found"`
		ResultCodes []string `json:"result_codes"`
	}{r.Found, r.ResultCodes}
}

func (r *VerifyResponse) Raw() []byte { return r.raw }

// Transport performs the wire call.
type Transport interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
}

// Adapter is the vendor call adapter for Lumen.
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

func (a *Adapter) API() vendorapi.API { return vendorapi.LumenKYC }

func (a *Adapter) Call(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.transport.Verify(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if resp.raw == nil {
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
		return vendors.NewCallError(vendors.ErrorTimeout, vendorapi.LumenKYC, "verify timed out", err)
	}
	return vendors.NewCallError(vendors.ErrorTransport, vendorapi.LumenKYC, "verify failed", err)
}

func (a *Adapter) Retryable(err error) bool {
	return vendors.IsRetryable(err)
}

func (a *Adapter) RequiredFields() []vault.Field {
	return []vault.Field{vault.FieldFirstName, vault.FieldLastName, vault.FieldDOB}
}

func (a *Adapter) NewRequest(snapshot vault.Snapshot) vendors.Request {
	return VerifyRequest{
		Reference: snapshot.Subject.String(),
		FullName:  snapshot.Get(vault.FieldFirstName) + " " + snapshot.Get(vault.FieldLastName),
		DOB:       snapshot.Get(vault.FieldDOB),
		SSN:       snapshot.Get(vault.FieldSSN),
		Address:   snapshot.Get(vault.FieldAddressLine1),
		Phone:     snapshot.Get(vault.FieldPhone),
		Email:     snapshot.Get(vault.FieldEmail),
	}
}

func (a *Adapter) Invoke(ctx context.Context, req vendors.Request) (vendors.Response, error) {
	verifyReq, ok := req.(VerifyRequest)
	if !ok {
		return nil, vendors.NewCallError(vendors.ErrorInternal, vendorapi.LumenKYC, "request type mismatch", nil)
	}
	return a.Call(ctx, verifyReq)
}

// ParseResponse parses a raw payload previously returned by this API.
func ParseResponse(raw []byte) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, vendors.NewCallError(vendors.ErrorBadData, vendorapi.LumenKYC, "parse stored response", err)
	}
	resp.raw = raw
	return &resp, nil
}

// SandboxTransport returns deterministic results for tests and local runs.
type SandboxTransport struct {
	Latency time.Duration
	Codes   []string
	Found   bool
}

func (t SandboxTransport) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if t.Latency > 0 {
		select {
		case <-time.After(t.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	resp := &VerifyResponse{Found: t.Found, ResultCodes: append([]string(nil), t.Codes...)}
	resp.raw, _ = json.Marshal(resp)
	return resp, nil
}
