package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/kaptinlin/jsonschema"
)

const verdictSchema = `{
  "type": "object",
  "required": ["passing"],
  "properties": {
    "passing": {"type": "boolean"},
    "reason": {"type": "string", "maxLength": 1000}
  }
}`

const evaluatorInstruction = `You review answers collected for a project proposal.
Decide whether the answer is a relevant, meaningful reply to the question.
Respond with JSON only, in the form {"passing": true|false, "reason": "<short explanation>"}.`

var errMalformedVerdict = errors.New("malformed semantic verdict")

// Completer is the part of the Router the evaluator needs.
type Completer interface {
	Complete(ctx context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error)
}

// SemanticEvaluator asks an LLM whether an answer actually addresses its question.
type SemanticEvaluator struct {
	llm    Completer
	schema *jsonschema.Schema
}

func NewSemanticEvaluator(llm Completer) (*SemanticEvaluator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile([]byte(verdictSchema))
	if err != nil {
		return nil, fmt.Errorf("compile verdict schema: %w", err)
	}
	return &SemanticEvaluator{llm: llm, schema: schema}, nil
}

// Evaluate returns the model's verdict. Any error means no verdict could be
// obtained; callers decide how to degrade.
func (e *SemanticEvaluator) Evaluate(ctx context.Context, question, answer string, qtype entity.QuestionType) (*entity.SemanticVerdict, error) {
	temperature := float32(0)
	resp, err := e.llm.Complete(ctx, &entity.LLMRequest{
		Purpose: entity.LLMPurposeValidation,
		Messages: []entity.ChatMessage{
			{Role: entity.RoleSystem, Content: evaluatorInstruction},
			{Role: entity.RoleUser, Content: fmt.Sprintf("Question type: %s\nQuestion: %s\nAnswer: %s", qtype, question, answer)},
		},
		Temperature: &temperature,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, err
	}
	return e.parse(resp.Text)
}

func (e *SemanticEvaluator) parse(raw string) (*entity.SemanticVerdict, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in %q", errMalformedVerdict, truncate(raw, 120))
	}

	result := e.schema.ValidateJSON([]byte(payload))
	if !result.IsValid() {
		return nil, fmt.Errorf("%w: %v", errMalformedVerdict, result.Errors)
	}

	var verdict entity.SemanticVerdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedVerdict, err)
	}
	verdict.Reason = strings.TrimSpace(verdict.Reason)
	return &verdict, nil
}

// extractJSONObject strips markdown fences and surrounding prose.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
