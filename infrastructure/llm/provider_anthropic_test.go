package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/docgavel/internal/ports"
)

func newAnthropicTestServer(t *testing.T, status int, body string, capture *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAnthropicProvider_DoRequest(t *testing.T) {
	var sent map[string]any
	server := newAnthropicTestServer(t, http.StatusOK, `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-latest",
		"content": [{"type": "text", "text": "{\"match\": false, \"score\": 0.1}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 120, "output_tokens": 14}
	}`, &sent)

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	res, err := provider.DoRequest(context.Background(), ports.InvokeRequest{
		ModelID:      "claude-3-opus",
		SystemPrompt: "You are a judge.",
		PromptParts:  []string{"prompt", "schema"},
		TopK:         5,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"match": false, "score": 0.1}`, res.Text)
	assert.Equal(t, 120, res.TokensIn)
	assert.Equal(t, 14, res.TokensOut)

	assert.Equal(t, "claude-3-opus", sent["model"])
	assert.Equal(t, float64(DefaultMaxTokens), sent["max_tokens"])
	assert.Equal(t, 5.0, sent["top_k"])
	assert.Equal(t, 0.0, sent["temperature"])

	system := sent["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "You are a judge.", system[0].(map[string]any)["text"])

	messages := sent["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "schema", content[1].(map[string]any)["text"])
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"rate limit", http.StatusTooManyRequests, ports.ErrRateLimited},
		{"authentication", http.StatusUnauthorized, ports.ErrAuthenticationFailed},
		{"overloaded", http.StatusInternalServerError, ports.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newAnthropicTestServer(t, tt.status,
				`{"type": "error", "error": {"type": "api_error", "message": "nope"}}`, nil)
			provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = provider.DoRequest(context.Background(), testRequest)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestAnthropicProvider_EmptyContent(t *testing.T) {
	server := newAnthropicTestServer(t, http.StatusOK, `{
		"id": "msg_02", "type": "message", "role": "assistant", "model": "m",
		"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}
	}`, nil)
	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.DoRequest(context.Background(), testRequest)

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicProvider_DefaultModel(t *testing.T) {
	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, AnthropicDefaultModel, provider.GetModel())

	_, err = newAnthropicProvider(ClientConfig{})
	assert.Error(t, err)
}
