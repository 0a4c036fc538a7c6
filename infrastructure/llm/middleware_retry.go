package llm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/docgavel/internal/ports"
)

// retryLLM retries transient failures with exponential backoff and jitter.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries rate limited, unavailable
// and timed out requests up to maxRetries times. Authentication failures,
// bad requests and an open circuit are returned immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest executes the request, retrying while the failure is transient.
func (r *retryLLM) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		res, err := r.next.DoRequest(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		clog.FromContext(ctx).Debugf("retrying model request: attempt=%d delay=%s err=%v", attempt+1, delay, err)

		select {
		case <-ctx.Done():
			return ports.InvokeResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return ports.InvokeResult{}, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded between 0 and 30
	multiplier := 1 << uint(attempt)
	delay := time.Duration(float64(r.baseDelay) * float64(multiplier))

	// Jitter of ±25%.
	// #nosec G404 - Using weak RNG is acceptable for jitter calculation
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }
