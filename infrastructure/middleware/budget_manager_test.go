package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

type countingInvoker struct {
	mu    sync.Mutex
	calls int
	res   ports.InvokeResult
	err   error
}

func (c *countingInvoker) Invoke(context.Context, ports.InvokeRequest) (ports.InvokeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.res, c.err
}

type gaugeRecorder struct {
	mu       sync.Mutex
	gauges   map[string]float64
	counters map[string]float64
}

func newGaugeRecorder() *gaugeRecorder {
	return &gaugeRecorder{gauges: map[string]float64{}, counters: map[string]float64{}}
}

func (g *gaugeRecorder) RecordLatency(string, time.Duration, map[string]string) {}
func (g *gaugeRecorder) RecordHistogram(string, float64, map[string]string)      {}

func (g *gaugeRecorder) RecordCounter(metric string, value float64, labels map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[metric+":"+labels["limit_type"]] += value
}

func (g *gaugeRecorder) RecordGauge(metric string, value float64, _ map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gauges[metric] = value
}

func TestNewBudgetManager_Validation(t *testing.T) {
	tests := []struct {
		name    string
		budget  Budget
		next    ports.ModelInvoker
		wantErr string
	}{
		{"nil next", Budget{}, nil, "next invoker is required"},
		{"negative tokens", Budget{MaxTokens: -1}, &countingInvoker{}, "max_tokens cannot be negative"},
		{"negative calls", Budget{MaxCalls: -5}, &countingInvoker{}, "max_calls cannot be negative"},
		{"valid", Budget{MaxTokens: 100, MaxCalls: 2}, &countingInvoker{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm, err := NewBudgetManager(tt.budget, tt.next, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, bm)
		})
	}
}

func TestBudgetManager_CallLimit(t *testing.T) {
	next := &countingInvoker{res: ports.InvokeResult{Text: "{}", TokensIn: 3, TokensOut: 2}}
	metrics := newGaugeRecorder()
	bm, err := NewBudgetManager(Budget{MaxCalls: 2}, next, metrics)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := bm.Invoke(context.Background(), ports.InvokeRequest{})
		require.NoError(t, err)
	}

	_, err = bm.Invoke(context.Background(), ports.InvokeRequest{})

	var be *domain.BudgetExceededError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "calls", be.LimitType)
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.Equal(t, 2, next.calls, "refused call must not reach the invoker")

	tokens, calls := bm.Usage()
	assert.Equal(t, int64(10), tokens)
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, 10.0, metrics.gauges[ports.MetricBudgetTokensUsed])
	assert.Equal(t, 2.0, metrics.gauges[ports.MetricBudgetCallsUsed])
	assert.Equal(t, 1.0, metrics.counters[ports.MetricBudgetExceeded+":calls"])
}

func TestBudgetManager_TokenLimit(t *testing.T) {
	next := &countingInvoker{res: ports.InvokeResult{TokensIn: 60, TokensOut: 50}}
	bm, err := NewBudgetManager(Budget{MaxTokens: 100}, next, nil)
	require.NoError(t, err)

	_, err = bm.Invoke(context.Background(), ports.InvokeRequest{})
	require.NoError(t, err, "usage is charged after the call")

	_, err = bm.Invoke(context.Background(), ports.InvokeRequest{})
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.Equal(t, 1, next.calls)
}

func TestBudgetManager_FailedCallsStillCount(t *testing.T) {
	next := &countingInvoker{err: ports.ErrServiceUnavailable}
	bm, err := NewBudgetManager(Budget{MaxCalls: 1}, next, nil)
	require.NoError(t, err)

	_, err = bm.Invoke(context.Background(), ports.InvokeRequest{})
	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)

	_, err = bm.Invoke(context.Background(), ports.InvokeRequest{})
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
}

func TestBudgetManager_Unlimited(t *testing.T) {
	assert.True(t, Budget{}.Unlimited())
	assert.False(t, Budget{MaxCalls: 1}.Unlimited())

	next := &countingInvoker{}
	bm, err := NewBudgetManager(Budget{}, next, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := bm.Invoke(context.Background(), ports.InvokeRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, 50, next.calls)
}
