package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/docgavel/internal/ports"
)

// AnthropicDefaultModel is used when neither the client nor the request
// names a model.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM over the Anthropic Messages API.
type anthropicProvider struct {
	client     anthropic.Client
	model      string
	classifier ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key cannot be empty")
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retries are owned by RetryMiddleware.
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	return &anthropicProvider{
		client:     anthropic.NewClient(opts...),
		model:      model,
		classifier: ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends the prompt parts as text blocks of one user message.
func (p *anthropicProvider) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	message, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return ports.InvokeResult{}, p.wrapError(err)
	}
	return p.processResponse(message)
}

func (p *anthropicProvider) buildParams(req ports.InvokeRequest) anthropic.MessageNewParams {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.PromptParts))
	for _, part := range req.PromptParts {
		blocks = append(blocks, anthropic.NewTextBlock(part))
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelFor(req, p.model)),
		MaxTokens:   int64(maxTokensFor(req)),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.TopK > 0 {
		params.TopK = anthropic.Int(int64(req.TopK))
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	return params
}

func (p *anthropicProvider) processResponse(message *anthropic.Message) (ports.InvokeResult, error) {
	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}

	if text.Len() == 0 {
		return ports.InvokeResult{}, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return ports.InvokeResult{
		Text:      text.String(),
		TokensIn:  int(message.Usage.InputTokens),
		TokensOut: int(message.Usage.OutputTokens),
	}, nil
}

func (p *anthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.classifier.ClassifyHTTPError(apiErr.StatusCode, "", err)
	}
	if ctxErr := p.classifier.ClassifyContextError(err); ctxErr.Type != ErrorTypeUnknown {
		return ctxErr
	}
	return p.classifier.ClassifyNetworkError(err)
}

// GetModel returns the configured Anthropic model name.
func (p *anthropicProvider) GetModel() string { return p.model }
