package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ahrav/docgavel/internal/ports"
)

// MatchResponse is a judge reply approving the extracted value.
const MatchResponse = `{"match": true, "score": 0.95, "reason": "Same meaning with different wording."}`

// MismatchResponse is a judge reply rejecting the extracted value.
const MismatchResponse = `{"match": false, "score": 0.1, "reason": "The values describe different things."}`

// MockResponse defines a pre-configured reply for prompts containing Pattern.
type MockResponse struct {
	// Pattern is matched case-insensitively against the joined prompt
	// parts. An empty pattern is the default reply.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// TokensIn and TokensOut are reported as usage.
	TokensIn  int
	TokensOut int
	// Err is returned instead of a reply when set.
	Err error
}

// MockInvoker implements ports.ModelInvoker with deterministic replies
// selected by prompt substring. Patterns are checked in the order they were
// added. It records every request and is safe for concurrent use.
type MockInvoker struct {
	mu        sync.Mutex
	responses []MockResponse
	fallback  MockResponse
	requests  []ports.InvokeRequest
}

// NewMockInvoker creates an invoker whose default reply is MatchResponse.
func NewMockInvoker(responses ...MockResponse) *MockInvoker {
	m := &MockInvoker{
		fallback: MockResponse{Response: MatchResponse, TokensIn: 120, TokensOut: 20},
	}
	for _, r := range responses {
		m.AddResponse(r)
	}
	return m
}

// AddResponse registers a reply. An empty pattern replaces the default.
func (m *MockInvoker) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Pattern == "" {
		m.fallback = r
		return
	}
	m.responses = append(m.responses, r)
}

// Invoke returns the first reply whose pattern occurs in the prompt.
func (m *MockInvoker) Invoke(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.InvokeResult{}, err
	}
	if len(req.PromptParts) == 0 {
		return ports.InvokeResult{}, errors.New("prompt cannot be empty")
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	r := m.match(strings.ToLower(strings.Join(req.PromptParts, "\n")))
	m.mu.Unlock()

	if r.Err != nil {
		return ports.InvokeResult{}, r.Err
	}
	return ports.InvokeResult{Text: r.Response, TokensIn: r.TokensIn, TokensOut: r.TokensOut}, nil
}

func (m *MockInvoker) match(prompt string) MockResponse {
	for _, r := range m.responses {
		if strings.Contains(prompt, strings.ToLower(r.Pattern)) {
			return r
		}
	}
	return m.fallback
}

// Calls returns the number of requests received.
func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the received requests in arrival order.
func (m *MockInvoker) Requests() []ports.InvokeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.InvokeRequest(nil), m.requests...)
}

// Reset clears recorded requests and custom replies.
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = nil
	m.responses = nil
	m.fallback = MockResponse{Response: MatchResponse, TokensIn: 120, TokensOut: 20}
}

var _ ports.ModelInvoker = (*MockInvoker)(nil)
