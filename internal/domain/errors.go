package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during evaluation.
var (
	// ErrNilSpec indicates that an evaluation was requested without an
	// attribute specification. It is a caller bug and is returned as fatal.
	ErrNilSpec = errors.New("nil attribute specification")

	// ErrNoHandler indicates that a method resolved to no comparison handler
	// even after the EXACT fallback. It is returned as fatal.
	ErrNoHandler = errors.New("no comparison handler")

	// ErrMissingItemTemplate indicates a list attribute without an item template.
	ErrMissingItemTemplate = errors.New("list attribute has no item template")

	// ErrTypeMismatch indicates that a value's shape doesn't match its attribute type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNotNumeric indicates that a value could not be parsed as a number.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrNoJudge indicates a SEMANTIC comparison with no judge configured.
	ErrNoJudge = errors.New("no semantic judge configured")

	// ErrMalformedJudgeResponse indicates a judge reply that failed parsing or
	// schema validation.
	ErrMalformedJudgeResponse = errors.New("malformed judge response")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrBudgetExceeded indicates that a judge call was refused because the
	// run's token or call budget is spent.
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// NormalizationError reports a value that could not be coerced for a method.
// It is recovered locally by the dispatcher.
type NormalizationError struct {
	// Value is the raw value that failed normalization.
	Value any

	// Method is the method that required the coercion.
	Method Method

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for NormalizationError.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: method=%s, value=%v, err=%v", e.Method, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *NormalizationError) Unwrap() error { return e.Err }

// NewNormalizationError creates a new NormalizationError.
func NewNormalizationError(value any, method Method, err error) *NormalizationError {
	return &NormalizationError{Value: value, Method: method, Err: err}
}

// ComparisonError reports a structural problem with one attribute, such as a
// list without an item template or a group compared against a scalar.
type ComparisonError struct {
	// Attribute is the path of the attribute that failed.
	Attribute string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ComparisonError.
func (e *ComparisonError) Error() string {
	return fmt.Sprintf("comparison error: attribute=%s, err=%v", e.Attribute, e.Err)
}

// Unwrap returns the underlying error.
func (e *ComparisonError) Unwrap() error { return e.Err }

// NewComparisonError creates a new ComparisonError.
func NewComparisonError(attribute string, err error) *ComparisonError {
	return &ComparisonError{Attribute: attribute, Err: err}
}

// AdapterError reports a failure of an external collaborator, typically the
// semantic judge.
type AdapterError struct {
	// Operation describes the adapter call that failed.
	Operation string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for AdapterError.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter error: operation=%s, err=%v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError creates a new AdapterError.
func NewAdapterError(operation string, err error) *AdapterError {
	return &AdapterError{Operation: operation, Err: err}
}

// BudgetExceededError reports which limit refused a judge call.
type BudgetExceededError struct {
	// LimitType is "tokens" or "calls".
	LimitType string
	Limit     int64
	Used      int64
}

// Error implements the error interface for BudgetExceededError.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit=%d, used=%d", e.LimitType, e.Limit, e.Used)
}

// Unwrap lets errors.Is match ErrBudgetExceeded.
func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// NewBudgetExceededError creates a new BudgetExceededError.
func NewBudgetExceededError(limitType string, limit, used int64) *BudgetExceededError {
	return &BudgetExceededError{LimitType: limitType, Limit: limit, Used: used}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
