package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/docgavel/internal/ports"
)

// timeoutLLM bounds each request with a deadline.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that cancels a request after timeout.
// Requests that exceed it fail with ports.ErrTimeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{
			next:    next,
			timeout: timeout,
		}
	}
}

// DoRequest executes the request with a timeout context.
func (t *timeoutLLM) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.next.DoRequest(tctx, req)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ports.ErrTimeout) {
		return ports.InvokeResult{}, fmt.Errorf("%w after %s: %w", ports.ErrTimeout, t.timeout, err)
	}
	return res, err
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }
