package invoker

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the invoker package.
var (
	// ErrEmptyResponse is returned when the service replies with no content.
	ErrEmptyResponse = errors.New("model returned empty response")

	// ErrMissingAPIKey is returned when an adapter cannot find credentials.
	ErrMissingAPIKey = errors.New("model API key is not configured")
)

// InvocationError wraps a transport or service failure from an inference
// call. Retryable distinguishes transient faults (timeouts, 5xx, rate
// limits) from permanent ones (bad request, auth).
type InvocationError struct {
	Stage     string
	Retryable bool
	Err       error
}

// Error returns the error message.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("stage %q: model invocation failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// NewInvocationError creates an InvocationError.
func NewInvocationError(stage string, retryable bool, err error) *InvocationError {
	return &InvocationError{Stage: stage, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is worth one more attempt. Context
// timeouts count as retryable transport faults; context cancellation does
// not, since the caller is tearing the run down.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var inv *InvocationError
	if errors.As(err, &inv) {
		return inv.Retryable
	}
	return false
}
