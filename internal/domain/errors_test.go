package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		cause   error
		wantMsg string
	}{
		{
			name:    "normalization error",
			err:     NewNormalizationError("abc", MethodNumericExact, ErrNotNumeric),
			cause:   ErrNotNumeric,
			wantMsg: "normalization error: method=NUMERIC_EXACT, value=abc, err=value is not numeric",
		},
		{
			name:    "comparison error",
			err:     NewComparisonError("line_items", ErrMissingItemTemplate),
			cause:   ErrMissingItemTemplate,
			wantMsg: "comparison error: attribute=line_items, err=list attribute has no item template",
		},
		{
			name:    "adapter error",
			err:     NewAdapterError("judge", ErrMalformedJudgeResponse),
			cause:   ErrMalformedJudgeResponse,
			wantMsg: "adapter error: operation=judge, err=malformed judge response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, errors.Is(tt.err, tt.cause), "Should unwrap to underlying error")

			wrapped := fmt.Errorf("evaluate: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.cause), "Should unwrap through fmt wrapping")
		})
	}
}

func TestComparisonErrorAs(t *testing.T) {
	err := fmt.Errorf("walk: %w", NewComparisonError("vendor", ErrTypeMismatch))

	var cmpErr *ComparisonError
	assert.True(t, errors.As(err, &cmpErr))
	assert.Equal(t, "vendor", cmpErr.Attribute)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("EvaluationConfig")
		err.AddError("missing classes")

		assert.Equal(t, "validation error for EvaluationConfig: missing classes", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("AttributeSpec")
		err.AddError("name is required")
		err.AddError("threshold out of range")

		assert.Contains(t, err.Error(), "validation errors for AttributeSpec")
		assert.Len(t, err.Errors, 2, "Should have two errors")
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Config")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
	})
}

func TestBudgetExceededError(t *testing.T) {
	err := NewBudgetExceededError("calls", 10, 11)

	assert.Equal(t, "budget exceeded: calls limit=10, used=11", err.Error())
	assert.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrNilSpec, "nil attribute specification"},
		{ErrNoHandler, "no comparison handler"},
		{ErrMissingItemTemplate, "list attribute has no item template"},
		{ErrTypeMismatch, "type mismatch"},
		{ErrNotNumeric, "value is not numeric"},
		{ErrNoJudge, "no semantic judge configured"},
		{ErrMalformedJudgeResponse, "malformed judge response"},
		{ErrInvalidConfiguration, "invalid configuration"},
		{ErrBudgetExceeded, "budget exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}
