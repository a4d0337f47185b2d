// Package sentriwatch adapts the Sentriwatch watchlist/AML screening API.
package sentriwatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
	"vouch/internal/vendors"
)

// ScreenRequest is the typed request for a watchlist screen.
type ScreenRequest struct {
	Reference string
	FullName  string
	DOB       string
	Country   string
}

func (ScreenRequest) API() vendorapi.API { return vendorapi.SentriwatchAML }

func (r ScreenRequest) Params() map[string]string {
	return map[string]string{"reference": r.Reference}
}

// Hit is one watchlist match. The list name is safe to store; the matched
// name is PII and lives only in the sealed copy.
type Hit struct {
	List        string  `json:"list"` // e.g. "ofac_sdn", "eu_consolidated", "pep"
	MatchedName string  `json:"matched_name"`
	Score       float64 `json:"score"`
}

// ScreenResponse is Sentriwatch's parsed screening result.
type ScreenResponse struct {
	Hits []Hit `json:"hits"`

	raw []byte
}

func (*ScreenResponse) API() vendorapi.API { return vendorapi.SentriwatchAML }

// Scrub drops the matched names, keeping list identifiers and scores.
func (r *ScreenResponse) Scrub() any {
	type scrubbedHit struct {
		List  string  `json:"list"`
		Score float64 `json:"score"`
	}
	hits := make([]scrubbedHit, 0, len(r.Hits))
	for _, hit := range r.Hits {
		hits = append(hits, scrubbedHit{List: hit.List, Score: hit.Score})
	}
	return struct {
		Hits []scrubbedHit `json:"hits"`
	}{hits}
}

func (r *ScreenResponse) Raw() []byte { return r.raw }

// Listed reports whether any hit clears the vendor's confidence floor.
func (r *ScreenResponse) Listed() bool {
	for _, hit := range r.Hits {
		if hit.Score >= 0.85 {
			return true
		}
	}
	return false
}

// PEP reports whether a politically-exposed-person list matched.
func (r *ScreenResponse) PEP() bool {
	for _, hit := range r.Hits {
		if hit.List == "pep" && hit.Score >= 0.85 {
			return true
		}
	}
	return false
}

// Transport performs the wire call.
type Transport interface {
	Screen(ctx context.Context, req ScreenRequest) (*ScreenResponse, error)
}

// Adapter is the vendor call adapter for Sentriwatch.
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

func (a *Adapter) API() vendorapi.API { return vendorapi.SentriwatchAML }

func (a *Adapter) Call(ctx context.Context, req ScreenRequest) (*ScreenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.transport.Screen(ctx, req)
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
		return vendors.NewCallError(vendors.ErrorTimeout, vendorapi.SentriwatchAML, "screen timed out", err)
	}
	return vendors.NewCallError(vendors.ErrorTransport, vendorapi.SentriwatchAML, "screen failed", err)
}

func (a *Adapter) Retryable(err error) bool {
	return vendors.IsRetryable(err)
}

func (a *Adapter) RequiredFields() []vault.Field {
	return []vault.Field{vault.FieldFirstName, vault.FieldLastName, vault.FieldDOB}
}

func (a *Adapter) NewRequest(snapshot vault.Snapshot) vendors.Request {
	return ScreenRequest{
		Reference: snapshot.Subject.String(),
		FullName:  snapshot.Get(vault.FieldFirstName) + " " + snapshot.Get(vault.FieldLastName),
		DOB:       snapshot.Get(vault.FieldDOB),
		Country:   snapshot.Get(vault.FieldState),
	}
}

func (a *Adapter) Invoke(ctx context.Context, req vendors.Request) (vendors.Response, error) {
	screenReq, ok := req.(ScreenRequest)
	if !ok {
		return nil, vendors.NewCallError(vendors.ErrorInternal, vendorapi.SentriwatchAML, "request type mismatch", nil)
	}
	return a.Call(ctx, screenReq)
}

// ParseResponse parses a raw payload previously returned by this API.
func ParseResponse(raw []byte) (*ScreenResponse, error) {
	var resp ScreenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, vendors.NewCallError(vendors.ErrorBadData, vendorapi.SentriwatchAML, "parse stored response", err)
	}
	resp.raw = raw
	return &resp, nil
}

// SandboxTransport returns deterministic screening results.
type SandboxTransport struct {
	Latency time.Duration
	Hits    []Hit
}

func (t SandboxTransport) Screen(ctx context.Context, req ScreenRequest) (*ScreenResponse, error) {
	if t.Latency > 0 {
		select {
		case <-time.After(t.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	resp := &ScreenResponse{Hits: append([]Hit(nil), t.Hits...)}
	resp.raw, _ = json.Marshal(resp)
	return resp, nil
}
