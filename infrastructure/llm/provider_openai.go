package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/docgavel/internal/ports"
)

// OpenAIDefaultModel is used when neither the client nor the request names
// a model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM over the OpenAI chat completions API.
// TopK is not supported by the API and is ignored.
type openAIProvider struct {
	client     *openai.Client
	model      string
	classifier ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		classifier: ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends the system prompt and the joined prompt parts as one chat
// completion in JSON mode.
func (p *openAIProvider) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return ports.InvokeResult{}, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return ports.InvokeResult{}, fmt.Errorf("openai: %w", ErrNoResponseChoice)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return ports.InvokeResult{}, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	return ports.InvokeResult{
		Text:      content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

func (p *openAIProvider) buildRequest(req ports.InvokeRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: strings.Join(req.PromptParts, "\n\n"),
	})

	return openai.ChatCompletionRequest{
		Model:       modelFor(req, p.model),
		Messages:    messages,
		Temperature: float32(clamp(req.Temperature, 0, 2)),
		MaxTokens:   maxTokensFor(req),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
}

func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.classifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return p.classifier.ClassifyNetworkError(err)
}

// GetModel returns the configured OpenAI model name.
func (p *openAIProvider) GetModel() string { return p.model }

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
