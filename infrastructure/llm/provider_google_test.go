package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/docgavel/internal/ports"
)

func TestGoogleProvider_DoRequest(t *testing.T) {
	var sent map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"match\": true, \"score\": 1}"}]}}],
			"usageMetadata": {"promptTokenCount": 33, "candidatesTokenCount": 8}
		}`))
	}))
	t.Cleanup(server.Close)

	provider, err := newGoogleProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	res, err := provider.DoRequest(context.Background(), ports.InvokeRequest{
		SystemPrompt: "judge",
		PromptParts:  []string{"a", "b"},
		TopK:         5,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"match": true, "score": 1}`, res.Text)
	assert.Equal(t, 33, res.TokensIn)
	assert.Equal(t, 8, res.TokensOut)

	cfg := sent["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.Equal(t, 5.0, cfg["topK"])
	assert.Contains(t, sent, "systemInstruction")
}

func TestGoogleProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`))
	}))
	t.Cleanup(server.Close)

	provider, err := newGoogleProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.DoRequest(context.Background(), testRequest)

	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
}

func TestGoogleProvider_Constructor(t *testing.T) {
	_, err := newGoogleProvider(ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	provider, err := newGoogleProvider(ClientConfig{APIKey: "test-key", Model: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", provider.GetModel())
}

func TestIsSafetyBlock(t *testing.T) {
	assert.True(t, isSafetyBlock("", "SAFETY"))
	assert.True(t, isSafetyBlock("Response blocked by policy", ""))
	assert.False(t, isSafetyBlock("quota exceeded", "RESOURCE_EXHAUSTED"))
}
