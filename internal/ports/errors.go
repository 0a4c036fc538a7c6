package ports

import (
	"errors"
	"fmt"
	"time"
)

// Errors that can occur while invoking an external model.
var (
	// ErrRateLimited indicates that the provider rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the provider is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an invocation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the provider returned no usable text.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that the provider rejected the credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCircuitOpen indicates that calls are being short-circuited after
	// repeated failures.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// InvokeError wraps a failed ModelInvoker call with the model and the
// operation that failed.
type InvokeError struct {
	// Model is the identifier of the model that was invoked.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if known.
	RetryAfter *time.Duration
}

// Error implements the error interface for InvokeError.
func (e *InvokeError) Error() string {
	msg := fmt.Sprintf("invoke error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *InvokeError) Unwrap() error { return e.Err }

// IsRetryable returns true if the failure is transient.
func (e *InvokeError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewInvokeError creates a new InvokeError with the given details.
func NewInvokeError(model, operation string, err error) *InvokeError {
	return &InvokeError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}
