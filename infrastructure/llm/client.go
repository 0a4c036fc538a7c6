// Package llm implements ports.ModelInvoker over the Anthropic, OpenAI and
// Google model APIs, with middleware for retries, rate limiting, timeouts,
// circuit breaking, tracing and metrics.
//
// Basic usage:
//
//	invoker, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-3-5-haiku-latest",
//	    Middleware: []llm.Middleware{
//	        llm.RetryMiddleware(2, 500*time.Millisecond, 5*time.Second),
//	        llm.RateLimitMiddleware(5, 5),
//	        llm.TimeoutMiddleware(30 * time.Second),
//	    },
//	})
//	res, err := invoker.Invoke(ctx, ports.InvokeRequest{PromptParts: []string{"..."}})
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahrav/docgavel/internal/ports"
)

// DefaultMaxTokens bounds the response length when a request does not set one.
const DefaultMaxTokens = 1024

// CoreLLM is the minimal interface a provider implements. Middleware wraps
// a CoreLLM and returns another.
type CoreLLM interface {
	// DoRequest sends one request. An empty req.ModelID means the provider's
	// configured model.
	DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Middleware wraps a CoreLLM to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds the options for creating a Client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is used for requests that do not name a model.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero means no timeout.
	Timeout time.Duration

	// Middleware is applied in order; the first entry is the outermost.
	Middleware []Middleware
}

// ProviderFactory creates a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under name. Providers in this
// package register themselves in init.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	providerFactories[name] = factory
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ ports.ModelInvoker = (*Client)(nil)

// Client implements ports.ModelInvoker on top of a provider and its
// middleware chain.
type Client struct {
	core CoreLLM
}

// NewClient creates a client for the named provider.
func NewClient(provider string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", provider, strings.Join(Providers(), ", "))
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return NewClientFromCore(core, config.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is mainly useful in tests.
func NewClientFromCore(core CoreLLM, middleware ...Middleware) *Client {
	// Reverse order so the first middleware is the outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Invoke implements ports.ModelInvoker. Failures are returned as
// *ports.InvokeError classified against the ports sentinels.
func (c *Client) Invoke(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	if len(req.PromptParts) == 0 {
		return ports.InvokeResult{}, fmt.Errorf("invoke request has no prompt parts")
	}

	res, err := c.core.DoRequest(ctx, req)
	if err != nil {
		model := req.ModelID
		if model == "" {
			model = c.core.GetModel()
		}
		return ports.InvokeResult{}, ports.NewInvokeError(model, "Invoke", classify(err))
	}
	return res, nil
}

// GetModel returns the default model of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

func modelFor(req ports.InvokeRequest, fallback string) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return fallback
}

func maxTokensFor(req ports.InvokeRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
