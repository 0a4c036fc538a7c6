// Package middleware provides cross-cutting concerns for the evaluation
// engine: a Prometheus MetricsCollector and a budget guard for judge calls.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/docgavel/infrastructure/llm"
	"github.com/ahrav/docgavel/internal/ports"
)

const namespace = "doceval"

// PrometheusMetrics implements ports.MetricsCollector using Prometheus.
// Well-known metric names are routed to dedicated vectors; anything else
// falls back to the generic operation metrics.
type PrometheusMetrics struct {
	attributesEvaluated *prometheus.CounterVec
	attributeErrors     *prometheus.CounterVec
	attributeScore      *prometheus.HistogramVec

	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	budgetExceeded *prometheus.CounterVec

	circuitState    *prometheus.GaugeVec
	circuitRequests *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collector and registers its metrics with
// reg. Pass prometheus.DefaultRegisterer to expose them on the default
// handler.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)

	return &PrometheusMetrics{
		attributesEvaluated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricAttributesEvaluated,
				Help:      "Leaf attributes evaluated, by method and confusion outcome.",
			},
			[]string{"method", "outcome"},
		),
		attributeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricAttributeErrors,
				Help:      "Attribute evaluations that ended with an error.",
			},
			[]string{"method"},
		),
		attributeScore: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      ports.MetricAttributeScore,
				Help:      "Distribution of attribute similarity scores.",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"method"},
		),

		llmRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricLLMRequests,
				Help:      "Judge model requests, by provider, model and status.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricLLMTokens,
				Help:      "Tokens consumed by judge model requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		llmLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      ports.MetricLLMLatency,
				Help:      "Latency of judge model requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "status"},
		),

		budgetExceeded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricBudgetExceeded,
				Help:      "Judge calls refused because the budget was spent.",
			},
			[]string{"limit_type"},
		),

		circuitState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"provider"},
		),
		circuitRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Requests seen by the circuit breaker, by result.",
			},
			[]string{"provider", "result"},
		),

		operationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Execution time of evaluation operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Counters recorded under names with no dedicated metric.",
			},
			[]string{"metric"},
		),
		systemGauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_state",
				Help:      "Current values such as budget usage.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records the duration of operation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the counter named by metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricAttributesEvaluated:
		pm.attributesEvaluated.WithLabelValues(label(labels, "method"), label(labels, "outcome")).Add(value)
	case ports.MetricAttributeErrors:
		pm.attributeErrors.WithLabelValues(label(labels, "method")).Add(value)
	case ports.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case ports.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "token_type")).Add(value)
	case ports.MetricBudgetExceeded:
		pm.budgetExceeded.WithLabelValues(label(labels, "limit_type")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets the gauge named by metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the histogram named by metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricAttributeScore:
		pm.attributeScore.WithLabelValues(label(labels, "method")).Observe(value)
	case ports.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(label(labels, "provider"), label(labels, "status")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// CircuitBreaker returns an llm.CircuitBreakerMetrics that reports the
// breaker in front of provider.
func (pm *PrometheusMetrics) CircuitBreaker(provider string) llm.CircuitBreakerMetrics {
	return &circuitBreakerMetrics{pm: pm, provider: provider}
}

type circuitBreakerMetrics struct {
	pm       *PrometheusMetrics
	provider string
}

func (c *circuitBreakerMetrics) RecordState(state llm.CircuitBreakerState) {
	c.pm.circuitState.WithLabelValues(c.provider).Set(float64(state))
}

func (c *circuitBreakerMetrics) RecordTrip() {
	c.pm.circuitRequests.WithLabelValues(c.provider, "rejected").Inc()
}

func (c *circuitBreakerMetrics) RecordSuccess() {
	c.pm.circuitRequests.WithLabelValues(c.provider, "success").Inc()
}

func (c *circuitBreakerMetrics) RecordFailure() {
	c.pm.circuitRequests.WithLabelValues(c.provider, "failure").Inc()
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
