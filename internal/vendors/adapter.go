// Package vendors defines the call adapter abstraction shared by every
// external verification API. An adapter is a pure mapping from a typed
// request to a typed response or a normalized CallError; it knows nothing
// about persistence or orchestration.
package vendors

import (
	"context"

	"vouch/internal/vault"
	"vouch/internal/vendorapi"
)

// Request is the storable description of one vendor call. Params must be
// safe to persist in the clear (identifiers and flags, never raw PII).
type Request interface {
	API() vendorapi.API

	// Params returns the request parameters recorded in the ledger.
	Params() map[string]string
}

// Response is a parsed vendor response. The scrubbed copy is stored in the
// clear for debugging; the raw payload is sealed before storage.
type Response interface {
	API() vendorapi.API

	// Scrub returns a copy of the response with secrets and PII removed,
	// safe to store unencrypted.
	Scrub() any

	// Raw returns the full response payload. Callers seal it before storage.
	Raw() []byte
}

// Adapter is the typed contract each vendor API implements exactly once.
// Req and Resp pin the vendor's request/response types so call sites cannot
// mix payloads across vendors.
type Adapter[Req Request, Resp Response] interface {
	API() vendorapi.API

	// Call performs the network call. Failures are returned as *CallError,
	// never panics.
	Call(ctx context.Context, req Req) (Resp, error)

	// Retryable classifies an error from Call. The classification is a
	// per-adapter property: the same category can be retryable for one
	// vendor and terminal for another.
	Retryable(err error) bool
}

// Invoker is the orchestration-facing view of an adapter. Building the
// request and performing the call are separate steps so the ledger can
// record the request row before the wire call starts. The waterfall works
// over Invokers so it stays vendor-agnostic.
type Invoker interface {
	API() vendorapi.API
	Retryable(err error) bool

	// RequiredFields lists the vault fields this vendor needs. Eligibility
	// uses it to exclude vendors the subject lacks data for.
	RequiredFields() []vault.Field

	// NewRequest builds the vendor's typed request from a subject snapshot.
	NewRequest(snapshot vault.Snapshot) Request

	// Invoke performs the call for a request built by NewRequest. Passing a
	// request of another vendor's type is an internal error.
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Registry holds the Invoker for every wired vendor API.
type Registry struct {
	invokers map[vendorapi.API]Invoker
}

func NewRegistry(invokers ...Invoker) *Registry {
	r := &Registry{invokers: make(map[vendorapi.API]Invoker, len(invokers))}
	for _, invoker := range invokers {
		r.invokers[invoker.API()] = invoker
	}
	return r
}

// Get returns the invoker for an API.
func (r *Registry) Get(api vendorapi.API) (Invoker, bool) {
	invoker, ok := r.invokers[api]
	return invoker, ok
}

// APIs lists the registered vendor APIs in vendorapi.All order.
func (r *Registry) APIs() []vendorapi.API {
	out := make([]vendorapi.API, 0, len(r.invokers))
	for _, api := range vendorapi.All() {
		if _, ok := r.invokers[api]; ok {
			out = append(out, api)
		}
	}
	return out
}
