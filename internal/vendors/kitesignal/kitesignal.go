// Package kitesignal adapts the Kitesignal device attestation API.
package kitesignal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mssola/useragent"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
)

// AttestRequest is the typed request for a device attestation.
type AttestRequest struct {
	Reference string
	IPAddress string
	UserAgent string

	// Derived client hints, parsed locally from the user agent so the vendor
	// verdict can be cross-checked against what the client claimed to be.
	Browser   string
	OS        string
	Mobile    bool
	ClaimsBot bool
}

func (AttestRequest) API() vendorapi.API { return vendorapi.KitesignalDevice }

func (r AttestRequest) Params() map[string]string {
	return map[string]string{
		"reference": r.Reference,
		"browser":   r.Browser,
		"os":        r.OS,
	}
}

// AttestResponse is Kitesignal's parsed attestation verdict.
type AttestResponse struct {
	Trusted    bool `json:"trusted"`
	Emulator   bool `json:"emulator"`
	Proxy      bool `json:"proxy"`
	BotTraffic bool `json:"bot_traffic"`

	raw []byte
}

func (*AttestResponse) API() vendorapi.API { return vendorapi.KitesignalDevice }

func (r *AttestResponse) Scrub() any {
	return struct {
		Trusted    bool `json:"trusted"`
		Emulator   bool `json:"emulator"`
		Proxy      bool `json:"proxy"`
		BotTraffic bool `json:"bot_traffic"`
	}{r.Trusted, r.Emulator, r.Proxy, r.BotTraffic}
}

func (r *AttestResponse) Raw() []byte { return r.raw }

// Transport performs the wire call.
type Transport interface {
	Attest(ctx context.Context, req AttestRequest) (*AttestResponse, error)
}

// Adapter is the vendor call adapter for Kitesignal.
type Adapter struct {
	transport Transport
	timeout   time.Duration
}

func NewAdapter(transport Transport, timeout time.Duration) *Adapter {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{transport: transport, timeout: timeout}
}

func (a *Adapter) API() vendorapi.API { return vendorapi.KitesignalDevice }

func (a *Adapter) Call(ctx context.Context, req AttestRequest) (*AttestResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.transport.Attest(ctx, req)
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
		return vendors.NewCallError(vendors.ErrorTimeout, vendorapi.KitesignalDevice, "attest timed out", err)
	}
	return vendors.NewCallError(vendors.ErrorTransport, vendorapi.KitesignalDevice, "attest failed", err)
}

func (a *Adapter) Retryable(err error) bool {
	return vendors.IsRetryable(err)
}

func (a *Adapter) RequiredFields() []vault.Field {
	return []vault.Field{vault.FieldUserAgent, vault.FieldIPAddress}
}

// NewRequest parses the stored user agent into client hints before calling
// the vendor, so signal extraction can compare claimed and attested device
// class.
func (a *Adapter) NewRequest(snapshot vault.Snapshot) vendors.Request {
	rawUA := snapshot.Get(vault.FieldUserAgent)
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()

	return AttestRequest{
		Reference: snapshot.Subject.String(),
		IPAddress: snapshot.Get(vault.FieldIPAddress),
		UserAgent: rawUA,
		Browser:   browser,
		OS:        ua.OS(),
		Mobile:    ua.Mobile(),
		ClaimsBot: ua.Bot(),
	}
}

func (a *Adapter) Invoke(ctx context.Context, req vendors.Request) (vendors.Response, error) {
	attestReq, ok := req.(AttestRequest)
	if !ok {
		return nil, vendors.NewCallError(vendors.ErrorInternal, vendorapi.KitesignalDevice, "request type mismatch", nil)
	}
	return a.Call(ctx, attestReq)
}

// ParseResponse parses a raw payload previously returned by this API.
func ParseResponse(raw []byte) (*AttestResponse, error) {
	var resp AttestResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, vendors.NewCallError(vendors.ErrorBadData, vendorapi.KitesignalDevice, "parse stored response", err)
	}
	resp.raw = raw
	return &resp, nil
}

// SandboxTransport returns deterministic attestation verdicts. It echoes the
// locally-parsed bot claim so adapter tests can exercise the cross-check.
type SandboxTransport struct {
	Latency  time.Duration
	Trusted  bool
	Emulator bool
	Proxy    bool
}

func (t SandboxTransport) Attest(ctx context.Context, req AttestRequest) (*AttestResponse, error) {
	if t.Latency > 0 {
		select {
		case <-time.After(t.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	resp := &AttestResponse{
		Trusted:    t.Trusted && !req.ClaimsBot,
		Emulator:   t.Emulator,
		Proxy:      t.Proxy,
		BotTraffic: req.ClaimsBot,
	}
	resp.raw, _ = json.Marshal(resp)
	return resp, nil
}
