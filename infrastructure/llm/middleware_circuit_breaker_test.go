package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/docgavel/internal/ports"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = NewProviderError("test", ErrorTypeServerError, 500, "", nil)
	metrics := &mockCircuitBreakerMetrics{}
	wrapped := CircuitBreakerMiddlewareWithMetrics(2, time.Minute, metrics)(mock)

	for i := 0; i < 2; i++ {
		_, err := wrapped.DoRequest(context.Background(), testRequest)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ports.ErrCircuitOpen)
	}

	_, err := wrapped.DoRequest(context.Background(), testRequest)

	assert.ErrorIs(t, err, ports.ErrCircuitOpen)
	assert.Equal(t, 2, mock.GetCallCount(), "open circuit must not reach the provider")
	assert.Equal(t, 2, metrics.failures)
	assert.Equal(t, 1, metrics.trips)
	assert.Equal(t, StateOpen, metrics.states[len(metrics.states)-1])
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	failing := func() error { return ports.ErrServiceUnavailable }
	ok := func() error { return nil }

	require.Error(t, cb.Call(failing))
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Call(ok), ports.ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(3, time.Minute)
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return ports.ErrServiceUnavailable })
	}
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Minute)
	err := cb.Call(func() error { return ports.ErrTimeout })

	assert.ErrorIs(t, err, ports.ErrTimeout)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)

	_ = cb.Call(func() error { return ports.ErrServiceUnavailable })
	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return ports.ErrServiceUnavailable })

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)

	err := cb.Call(func() error { return context.Canceled })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
