package compare

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

// stubInvoker returns a fixed reply and records the last request.
type stubInvoker struct {
	reply string
	err   error
	last  ports.InvokeRequest
}

func (s *stubInvoker) Invoke(_ context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	s.last = req
	if s.err != nil {
		return ports.InvokeResult{}, s.err
	}
	return ports.InvokeResult{Text: s.reply, TokensIn: 10, TokensOut: 5}, nil
}

func TestParseJudgeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ports.JudgeResult
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"match": true, "score": 0.92, "reason": "same vendor"}`,
			want: ports.JudgeResult{Match: true, Score: 0.92, Reason: "same vendor"},
		},
		{
			name: "reason optional",
			raw:  `{"match": false, "score": 0}`,
			want: ports.JudgeResult{Match: false, Score: 0},
		},
		{
			name: "markdown block",
			raw:  "Here you go:\n```json\n{\"match\": true, \"score\": 1}\n```",
			want: ports.JudgeResult{Match: true, Score: 1},
		},
		{
			name: "surrounding prose with braces in strings",
			raw:  `Verdict {"match": true, "score": 0.8, "reason": "uses {curly} braces"} done`,
			want: ports.JudgeResult{Match: true, Score: 0.8, Reason: "uses {curly} braces"},
		},
		{
			name: "extra fields allowed",
			raw:  `{"match": true, "score": 0.7, "confidence": "high"}`,
			want: ports.JudgeResult{Match: true, Score: 0.7},
		},
		{name: "no json", raw: "The values match.", wantErr: true},
		{name: "missing score", raw: `{"match": true}`, wantErr: true},
		{name: "wrong type", raw: `{"match": "yes", "score": 1}`, wantErr: true},
		{name: "truncated", raw: `{"match": true, "score": `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJudgeResponse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrMalformedJudgeResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJudgeResponseSchema(t *testing.T) {
	raw, err := JudgeResponseSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "match")
	assert.Contains(t, props, "score")
	assert.Contains(t, props, "reason")
	assert.ElementsMatch(t, []any{"match", "score"}, schema["required"])
}

func TestNewInvokerJudge(t *testing.T) {
	t.Run("nil invoker", func(t *testing.T) {
		_, err := NewInvokerJudge(nil, DefaultSemanticConfig())
		assert.Error(t, err)
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := DefaultSemanticConfig()
		cfg.ModelID = ""
		_, err := NewInvokerJudge(&stubInvoker{}, cfg)
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("bad template", func(t *testing.T) {
		cfg := DefaultSemanticConfig()
		cfg.PromptTemplate = "{{.Expected"
		_, err := NewInvokerJudge(&stubInvoker{}, cfg)
		assert.ErrorContains(t, err, "template")
	})

	t.Run("empty prompts use defaults", func(t *testing.T) {
		j, err := NewInvokerJudge(&stubInvoker{}, SemanticConfig{ModelID: "m"})
		require.NoError(t, err)
		assert.Equal(t, DefaultSystemPrompt, j.config.SystemPrompt)
	})
}

func TestInvokerJudgeBuildRequest(t *testing.T) {
	cfg := DefaultSemanticConfig()
	cfg.ModelID = "judge-model"
	cfg.TopK = 7
	j, err := NewInvokerJudge(&stubInvoker{}, cfg)
	require.NoError(t, err)

	req, err := j.BuildRequest(ports.JudgeRequest{
		DocumentClass:        "invoice",
		AttributeName:        "vendor",
		AttributeDescription: "Vendor legal name",
		Expected:             "Acme Corporation",
		Actual:               nil,
	})
	require.NoError(t, err)

	assert.Equal(t, "judge-model", req.ModelID)
	assert.Equal(t, DefaultSystemPrompt, req.SystemPrompt)
	assert.Equal(t, 7, req.TopK)
	require.Len(t, req.PromptParts, 2)
	assert.Contains(t, req.PromptParts[0], "invoice document")
	assert.Contains(t, req.PromptParts[0], "Description: Vendor legal name")
	assert.Contains(t, req.PromptParts[0], "Expected value: Acme Corporation")
	assert.Contains(t, req.PromptParts[0], "Extracted value: None")
	assert.True(t, strings.Contains(req.PromptParts[1], `"match"`))
}

func TestInvokerJudgeJudge(t *testing.T) {
	ctx := context.Background()

	t.Run("parses reply", func(t *testing.T) {
		inv := &stubInvoker{reply: `{"match": true, "score": 0.9, "reason": "abbreviation"}`}
		j, err := NewInvokerJudge(inv, DefaultSemanticConfig())
		require.NoError(t, err)

		res, err := j.Judge(ctx, ports.JudgeRequest{AttributeName: "vendor", Expected: "a", Actual: "b"})
		require.NoError(t, err)
		assert.Equal(t, ports.JudgeResult{Match: true, Score: 0.9, Reason: "abbreviation"}, res)
		assert.Equal(t, DefaultSemanticConfig().ModelID, inv.last.ModelID)
	})

	t.Run("invoker failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		j, err := NewInvokerJudge(&stubInvoker{err: boom}, DefaultSemanticConfig())
		require.NoError(t, err)

		_, err = j.Judge(ctx, ports.JudgeRequest{AttributeName: "vendor"})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var adapterErr *domain.AdapterError
		require.ErrorAs(t, err, &adapterErr)
		assert.Equal(t, "invoke", adapterErr.Operation)
	})

	t.Run("malformed reply", func(t *testing.T) {
		j, err := NewInvokerJudge(&stubInvoker{reply: "not json"}, DefaultSemanticConfig())
		require.NoError(t, err)

		_, err = j.Judge(ctx, ports.JudgeRequest{AttributeName: "vendor"})
		assert.ErrorIs(t, err, domain.ErrMalformedJudgeResponse)
	})

	t.Run("through dispatcher", func(t *testing.T) {
		j, err := NewInvokerJudge(&stubInvoker{reply: "I think they match"}, DefaultSemanticConfig())
		require.NoError(t, err)

		out, err := NewDispatcher(WithJudge(j)).Compare(ctx, Request{
			Method:    domain.MethodSemantic,
			Expected:  "Acme",
			Actual:    "ACME Inc",
			Threshold: 0.8,
		})
		require.NoError(t, err)
		assert.False(t, out.Matched)
		assert.Equal(t, 0.0, out.Score)
		assert.ErrorIs(t, out.Err, domain.ErrMalformedJudgeResponse)
		assert.NotEmpty(t, out.Reason)
	})
}
