package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/docgavel/internal/ports"
)

// rateLimitedLLM paces requests with a token bucket shared by every client
// built from the same middleware value.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that allows limit requests per
// second with bursts of up to burst requests.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{
			next:    next,
			limiter: limiter,
		}
	}
}

// DoRequest blocks until the limiter grants a token or ctx is done.
func (r *rateLimitedLLM) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ports.InvokeResult{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }
