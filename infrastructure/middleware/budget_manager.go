package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

// Budget limits the judge calls made during one run.
type Budget struct {
	// MaxTokens limits input plus output tokens. Zero means unlimited.
	MaxTokens int64

	// MaxCalls limits the number of model invocations. Zero means unlimited.
	MaxCalls int64
}

// Unlimited reports whether b imposes no limit.
func (b Budget) Unlimited() bool { return b.MaxTokens == 0 && b.MaxCalls == 0 }

// BudgetManager is a ports.ModelInvoker that refuses calls once the budget
// is spent. Refused calls fail with *domain.BudgetExceededError and never
// reach the wrapped invoker, so the semantic attribute that needed them is
// recorded as an attribute error.
//
// Token usage is only known after a call returns, so the token limit can be
// overshot by the calls in flight when it is crossed.
type BudgetManager struct {
	budget  Budget
	next    ports.ModelInvoker
	metrics ports.MetricsCollector

	mu     sync.Mutex
	tokens int64
	calls  int64
}

// NewBudgetManager wraps next with budget. metrics may be nil.
func NewBudgetManager(budget Budget, next ports.ModelInvoker, metrics ports.MetricsCollector) (*BudgetManager, error) {
	if next == nil {
		return nil, fmt.Errorf("budget manager: next invoker is required")
	}
	if budget.MaxTokens < 0 {
		return nil, fmt.Errorf("budget manager: max_tokens cannot be negative, got %d", budget.MaxTokens)
	}
	if budget.MaxCalls < 0 {
		return nil, fmt.Errorf("budget manager: max_calls cannot be negative, got %d", budget.MaxCalls)
	}
	return &BudgetManager{budget: budget, next: next, metrics: metrics}, nil
}

// Invoke reserves a call against the budget, forwards the request and
// charges the tokens it used.
func (bm *BudgetManager) Invoke(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	if err := bm.reserve(); err != nil {
		clog.FromContext(ctx).Warnf("judge call refused: %v", err)
		if bm.metrics != nil {
			var be *domain.BudgetExceededError
			if errors.As(err, &be) {
				bm.metrics.RecordCounter(ports.MetricBudgetExceeded, 1, map[string]string{"limit_type": be.LimitType})
			}
		}
		return ports.InvokeResult{}, err
	}

	res, err := bm.next.Invoke(ctx, req)
	bm.charge(int64(res.TokensIn + res.TokensOut))
	return res, err
}

// Usage returns the tokens and calls consumed so far.
func (bm *BudgetManager) Usage() (tokens, calls int64) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.tokens, bm.calls
}

func (bm *BudgetManager) reserve() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.budget.MaxTokens > 0 && bm.tokens >= bm.budget.MaxTokens {
		return domain.NewBudgetExceededError("tokens", bm.budget.MaxTokens, bm.tokens)
	}
	if bm.budget.MaxCalls > 0 && bm.calls >= bm.budget.MaxCalls {
		return domain.NewBudgetExceededError("calls", bm.budget.MaxCalls, bm.calls)
	}
	bm.calls++
	bm.record()
	return nil
}

func (bm *BudgetManager) charge(tokens int64) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.tokens += tokens
	bm.record()
}

// record must be called with mu held.
func (bm *BudgetManager) record() {
	if bm.metrics == nil {
		return
	}
	bm.metrics.RecordGauge(ports.MetricBudgetTokensUsed, float64(bm.tokens), nil)
	bm.metrics.RecordGauge(ports.MetricBudgetCallsUsed, float64(bm.calls), nil)
}

var _ ports.ModelInvoker = (*BudgetManager)(nil)
