package ports

import (
	"context"
	"time"
)

// InvokeRequest carries one model invocation. PromptParts are sent in order
// as the user turn.
type InvokeRequest struct {
	ModelID      string
	SystemPrompt string
	PromptParts  []string
	Temperature  float64
	// TopK is ignored by providers that do not support it. Zero means unset.
	TopK      int
	MaxTokens int
}

// InvokeResult is the raw model output along with token usage.
type InvokeResult struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// ModelInvoker defines the transport used by the semantic judge to reach a
// language model. Retry, backoff, rate limiting and timeouts are the
// implementation's concern.
type ModelInvoker interface {
	// Invoke sends the request and returns the raw response text.
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, such as attribute scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Metric names shared by MetricsCollector producers and implementations.
const (
	MetricAttributesEvaluated = "attributes_evaluated_total"
	MetricAttributeErrors     = "attribute_errors_total"
	MetricAttributeScore      = "attribute_score"
	MetricEvaluateSection     = "evaluate_section"
	MetricEvaluateDocument    = "evaluate_document"
	MetricLLMLatency          = "llm_latency_seconds"
	MetricLLMRequests         = "llm_requests_total"
	MetricLLMTokens           = "llm_tokens_total"
	MetricBudgetTokensUsed    = "budget_tokens_used"
	MetricBudgetCallsUsed     = "budget_calls_used"
	MetricBudgetExceeded      = "budget_exceeded_total"
)
