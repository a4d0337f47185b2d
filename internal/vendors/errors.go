package vendors

import (
	"errors"
	"fmt"

	"vouch/internal/vendorapi"
)

// ErrorCategory defines the normalized failure taxonomy for vendor calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the vendor took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorTransport indicates a network failure or vendor-side 5xx.
	ErrorTransport ErrorCategory = "transport"

	// ErrorBadData indicates the vendor returned invalid/malformed data.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues.
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorRateLimited indicates too many requests.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorSemantic indicates a well-formed error response from the vendor
	// (e.g. malformed request, unsupported region). Terminal for that vendor
	// but not fatal to the waterfall.
	ErrorSemantic ErrorCategory = "semantic"

	// ErrorNotReady indicates results are not yet available. Only meaningful
	// for vendors with asynchronous processing; each adapter decides whether
	// this category is retryable for its API.
	ErrorNotReady ErrorCategory = "not_ready"

	// ErrorInternal indicates an unexpected internal error.
	ErrorInternal ErrorCategory = "internal"
)

// CallError wraps vendor call failures with normalized categorization.
// Adapters never let failures escape as panics or untyped errors; everything
// crossing the adapter boundary is a CallError.
type CallError struct {
	Category   ErrorCategory
	API        vendorapi.API
	Message    string
	Underlying error
	Retryable  bool
}

func (e *CallError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("vendor %s [%s]: %s: %v", e.API, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("vendor %s [%s]: %s", e.API, e.Category, e.Message)
}

func (e *CallError) Unwrap() error { return e.Underlying }

// NewCallError creates a normalized vendor call error. Retryability defaults
// from the category; adapters with vendor-specific semantics (e.g. "document
// results not ready") override the flag explicitly.
func NewCallError(category ErrorCategory, api vendorapi.API, message string, underlying error) *CallError {
	retryable := category == ErrorTimeout ||
		category == ErrorTransport ||
		category == ErrorRateLimited

	return &CallError{
		Category:   category,
		API:        api,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying against the same vendor or
// worth advancing past to the next one.
func IsRetryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// CategoryOf extracts the error category from an error.
func CategoryOf(err error) ErrorCategory {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ErrorInternal
}
