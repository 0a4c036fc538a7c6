package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/docgavel/internal/ports"
)

// metricsLLM records latency, request counts and token usage for each
// model request.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports llm_latency_seconds,
// llm_requests_total and llm_tokens_total to collector.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
		}
	}
}

// DoRequest executes the request and records its outcome.
func (m *metricsLLM) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	start := time.Now()
	res, err := m.next.DoRequest(ctx, req)

	if m.collector == nil {
		return res, err
	}

	model := modelFor(req, m.next.GetModel())
	labels := map[string]string{
		"provider": providerOf(model),
		"model":    model,
		"status":   statusOf(ctx, err),
	}

	m.collector.RecordHistogram(ports.MetricLLMLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(ports.MetricLLMRequests, 1, labels)

	if err == nil {
		in := copyLabels(labels)
		in["token_type"] = "input"
		m.collector.RecordCounter(ports.MetricLLMTokens, float64(res.TokensIn), in)

		out := copyLabels(labels)
		out["token_type"] = "output"
		m.collector.RecordCounter(ports.MetricLLMTokens, float64(res.TokensOut), out)
	}

	return res, err
}

func statusOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ports.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ports.ErrTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

func providerOf(model string) string {
	switch {
	case strings.Contains(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }
