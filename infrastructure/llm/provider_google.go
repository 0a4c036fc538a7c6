package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/docgavel/internal/ports"
)

// GoogleDefaultModel is used when neither the client nor the request names
// a model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM over the Gemini API.
type googleProvider struct {
	client     *genai.Client
	model      string
	classifier ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		client:     client,
		model:      model,
		classifier: ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends the prompt parts as one user turn and asks for a JSON
// response.
func (p *googleProvider) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	resp, err := p.client.Models.GenerateContent(ctx, modelFor(req, p.model), p.buildContents(req), p.buildConfig(req))
	if err != nil {
		return ports.InvokeResult{}, p.handleError(err)
	}

	content := resp.Text()
	if strings.TrimSpace(content) == "" {
		return ports.InvokeResult{}, fmt.Errorf("google: %w", ErrEmptyResponse)
	}

	res := ports.InvokeResult{Text: content}
	if resp.UsageMetadata != nil {
		res.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		res.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return res, nil
}

func (p *googleProvider) buildContents(req ports.InvokeRequest) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.PromptParts))
	for _, text := range req.PromptParts {
		parts = append(parts, genai.NewPartFromText(text))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (p *googleProvider) buildConfig(req ports.InvokeRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(clamp(req.Temperature, 0, 2))),
		ResponseMIMEType: "application/json",
	}

	maxTokens := maxTokensFor(req)
	if maxTokens > math.MaxInt32 {
		maxTokens = math.MaxInt32
	}
	config.MaxOutputTokens = int32(maxTokens) // #nosec G115 - bounded above

	if req.TopK > 0 {
		config.TopK = genai.Ptr(float32(req.TopK))
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return config
}

func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyBlock(apiErr.Message, apiErr.Status) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code, "request blocked by safety filters", err)
		}
		return p.classifier.ClassifyHTTPError(apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		reason := ""
		if len(gErr.Errors) > 0 {
			reason = gErr.Errors[0].Reason
			if message == "" {
				message = gErr.Errors[0].Message
			}
		}
		if isSafetyBlock(message, reason) {
			return NewProviderError("google", ErrorTypeContentPolicy, gErr.Code, "request blocked by safety filters", err)
		}
		return p.classifier.ClassifyHTTPError(gErr.Code, message, err)
	}

	return p.classifier.ClassifyNetworkError(err)
}

// GetModel returns the configured Gemini model name.
func (p *googleProvider) GetModel() string { return p.model }

func isSafetyBlock(message, reason string) bool {
	if reason == "SAFETY" || reason == "BLOCKED" {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}
