package compare

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

var _ ports.Judge = (*InvokerJudge)(nil)

// DefaultPromptTemplate is the prompt used when a SemanticConfig does not
// provide one. Missing values render as "None".
const DefaultPromptTemplate = `You are evaluating a document extraction for a {{.DocumentClass}} document.

Attribute: {{.AttributeName}}
{{- if .AttributeDescription}}
Description: {{.AttributeDescription}}
{{- end}}

Expected value: {{.Expected}}
Extracted value: {{.Actual}}

Decide whether the extracted value conveys the same information as the expected value.
Ignore differences in formatting, casing and abbreviations that do not change the meaning.`

// DefaultSystemPrompt is the system prompt used when none is configured.
const DefaultSystemPrompt = "You are a meticulous reviewer of document extraction results. " +
	"Reply with a single JSON object and nothing else."

// SemanticConfig configures the model-backed judge.
type SemanticConfig struct {
	// ModelID is passed to the invoker for every request.
	ModelID string `yaml:"model_id" json:"model_id" validate:"required"`

	SystemPrompt   string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	PromptTemplate string `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`

	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`
	TopK        int     `yaml:"top_k,omitempty" json:"top_k,omitempty" validate:"min=0,max=500"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" validate:"omitempty,min=16,max=8192"`
}

// DefaultSemanticConfig returns deterministic sampling with the default prompts.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		ModelID:        "claude-3-5-haiku-latest",
		SystemPrompt:   DefaultSystemPrompt,
		PromptTemplate: DefaultPromptTemplate,
		Temperature:    0,
		TopK:           5,
		MaxTokens:      512,
	}
}

// promptData is the template context. Values are pre-rendered strings.
type promptData struct {
	DocumentClass        string
	AttributeName        string
	AttributeDescription string
	Expected             string
	Actual               string
	Threshold            float64
}

// InvokerJudge is a ports.Judge that asks a language model through a
// ports.ModelInvoker and parses its structured reply. It is safe for
// concurrent use.
type InvokerJudge struct {
	invoker ports.ModelInvoker
	config  SemanticConfig
	tmpl    *template.Template
	tracer  trace.Tracer
}

// NewInvokerJudge validates cfg, compiles its prompt template and returns a
// judge backed by invoker. Empty prompts fall back to the defaults.
func NewInvokerJudge(invoker ports.ModelInvoker, cfg SemanticConfig) (*InvokerJudge, error) {
	if invoker == nil {
		return nil, fmt.Errorf("model invoker cannot be nil")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = DefaultPromptTemplate
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("semantic configuration validation failed: %w", err)
	}

	tmpl, err := template.New("semanticPrompt").Option("missingkey=error").Parse(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse semantic prompt template: %w", err)
	}

	return &InvokerJudge{
		invoker: invoker,
		config:  cfg,
		tmpl:    tmpl,
		tracer:  otel.Tracer("semantic-judge"),
	}, nil
}

// BuildRequest renders the invocation for one attribute. The prompt parts are
// the rendered prompt followed by the response schema.
func (j *InvokerJudge) BuildRequest(req ports.JudgeRequest) (ports.InvokeRequest, error) {
	data := promptData{
		DocumentClass:        req.DocumentClass,
		AttributeName:        req.AttributeName,
		AttributeDescription: req.AttributeDescription,
		Expected:             promptValue(req.Expected),
		Actual:               promptValue(req.Actual),
		Threshold:            req.Threshold,
	}

	var buf bytes.Buffer
	if err := j.tmpl.Execute(&buf, data); err != nil {
		return ports.InvokeRequest{}, fmt.Errorf("failed to render semantic prompt: %w", err)
	}

	schema, err := JudgeResponseSchema()
	if err != nil {
		return ports.InvokeRequest{}, fmt.Errorf("load judge schema: %w", err)
	}

	return ports.InvokeRequest{
		ModelID:      j.config.ModelID,
		SystemPrompt: j.config.SystemPrompt,
		PromptParts: []string{
			buf.String(),
			"Respond with a JSON object that satisfies this schema:\n" + string(schema),
		},
		Temperature: j.config.Temperature,
		TopK:        j.config.TopK,
		MaxTokens:   j.config.MaxTokens,
	}, nil
}

// Judge implements ports.Judge.
func (j *InvokerJudge) Judge(ctx context.Context, req ports.JudgeRequest) (ports.JudgeResult, error) {
	ctx, span := j.tracer.Start(ctx, "InvokerJudge.Judge",
		trace.WithAttributes(
			attribute.String("judge.model_id", j.config.ModelID),
			attribute.String("judge.document_class", req.DocumentClass),
			attribute.String("judge.attribute", req.AttributeName),
		),
	)
	defer span.End()

	invokeReq, err := j.BuildRequest(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return ports.JudgeResult{}, domain.NewAdapterError("build_prompt", err)
	}

	resp, err := j.invoker.Invoke(ctx, invokeReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoke")
		return ports.JudgeResult{}, domain.NewAdapterError("invoke", err)
	}

	result, err := ParseJudgeResponse(resp.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse response")
		return ports.JudgeResult{}, domain.NewAdapterError("parse_response", err)
	}

	span.SetAttributes(
		attribute.Bool("judge.match", result.Match),
		attribute.Float64("judge.score", result.Score),
		attribute.Int("judge.tokens_in", resp.TokensIn),
		attribute.Int("judge.tokens_out", resp.TokensOut),
	)
	return result, nil
}

func promptValue(v any) string {
	if !domain.IsPresent(v) {
		return "None"
	}
	return Stringify(v)
}
