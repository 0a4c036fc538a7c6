package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/docgavel/internal/ports"
)

// tracedLLM records a span for every model request.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that wraps each request in an
// "llm.request" span from the global tracer provider.
func TracingMiddleware(serviceName string) Middleware {
	return TracingMiddlewareWithTracer(serviceName, otel.Tracer("github.com/ahrav/docgavel/infrastructure/llm"))
}

// TracingMiddlewareWithTracer is TracingMiddleware with an explicit tracer.
func TracingMiddlewareWithTracer(serviceName string, tracer trace.Tracer) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:        next,
			serviceName: serviceName,
			tracer:      tracer,
		}
	}
}

// DoRequest executes the request within a span carrying the model, prompt
// size and token usage.
func (t *tracedLLM) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	promptLen := len(req.SystemPrompt)
	for _, p := range req.PromptParts {
		promptLen += len(p)
	}

	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.model", modelFor(req, t.next.GetModel())),
			attribute.Int("llm.prompt.length", promptLen),
			attribute.Int("llm.prompt.parts", len(req.PromptParts)),
		),
	)
	defer span.End()

	res, err := t.next.DoRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", res.TokensIn),
		attribute.Int("llm.tokens.output", res.TokensOut),
	)
	return res, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }
