package compare

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	invjsonschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

// JudgeResponse is the JSON object a semantic judge must reply with.
type JudgeResponse struct {
	Match  bool    `json:"match" jsonschema:"description=Whether the extracted value is equivalent to the expected value"`
	Score  float64 `json:"score" jsonschema:"description=Confidence in the decision between 0 and 1"`
	Reason string  `json:"reason,omitempty" jsonschema:"description=Short explanation of the decision"`
}

var (
	schemaOnce     sync.Once
	schemaJSON     []byte
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadJudgeSchema() {
	schemaOnce.Do(func() {
		r := &invjsonschema.Reflector{
			ExpandedStruct:            true,
			DoNotReference:            true,
			AllowAdditionalProperties: true,
			Anonymous:                 true,
		}
		schemaJSON, schemaErr = json.MarshalIndent(r.Reflect(&JudgeResponse{}), "", "  ")
		if schemaErr != nil {
			return
		}
		compiledSchema, schemaErr = jsonschema.CompileString("judge_response.schema.json", string(schemaJSON))
	})
}

// JudgeResponseSchema returns the JSON Schema of JudgeResponse.
func JudgeResponseSchema() ([]byte, error) {
	loadJudgeSchema()
	return schemaJSON, schemaErr
}

// ParseJudgeResponse extracts the JSON object from a raw model reply,
// validates it against the judge response schema and decodes it. The reply
// may wrap the object in prose or a markdown code block.
func ParseJudgeResponse(raw string) (ports.JudgeResult, error) {
	loadJudgeSchema()
	if schemaErr != nil {
		return ports.JudgeResult{}, fmt.Errorf("load judge schema: %w", schemaErr)
	}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return ports.JudgeResult{}, fmt.Errorf("%w: no JSON object found (response length: %d chars)",
			domain.ErrMalformedJudgeResponse, len(raw))
	}

	var decoded any
	if err := json.Unmarshal([]byte(jsonStr), &decoded); err != nil {
		return ports.JudgeResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedJudgeResponse, err)
	}
	if err := compiledSchema.Validate(decoded); err != nil {
		return ports.JudgeResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedJudgeResponse, err)
	}

	var resp JudgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return ports.JudgeResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedJudgeResponse, err)
	}
	return ports.JudgeResult{Match: resp.Match, Score: resp.Score, Reason: resp.Reason}, nil
}

// extractJSON returns the first balanced JSON object in response, looking
// inside markdown code blocks first. It returns "" when none is found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
