package llm

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

var sectionLine = regexp.MustCompile(`(?m)^\s*\d+\.\s+([^(:\n]+)`)

var mockFollowUps = []string{
	"What are the main risks you foresee for this project?",
	"Which stakeholders need to approve the proposal?",
	"How will you measure the success of the project?",
	"Are there any technical constraints we should account for?",
	"What does the ideal outcome look like six months after delivery?",
}

// MockProvider answers deterministically without any network access.
// It is used when ENABLE_MOCKS is set and in end to end tests.
type MockProvider struct {
	id string
}

func NewMockProvider(id string) *MockProvider {
	if id == "" {
		id = "mock"
	}
	return &MockProvider{id: id}
}

func (m *MockProvider) ID() string {
	return m.id
}

func (m *MockProvider) Complete(ctx context.Context, req *entity.LLMRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", entity.NewFatalError(m.id, err)
	}
	ctxzap.Info(ctx, "[MOCK] llm call", zap.String("purpose", string(req.Purpose)))

	switch req.Purpose {
	case entity.LLMPurposeQuestion:
		return mockFollowUps[len(req.Messages)%len(mockFollowUps)], nil
	case entity.LLMPurposeValidation:
		return `{"passing": true, "reason": "the answer addresses the question"}`, nil
	default:
		return mockProposal(req), nil
	}
}

// Stream emits the Complete output word by word.
func (m *MockProvider) Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := m.Complete(ctx, req)
		if err != nil {
			yield("", err)
			return
		}
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				yield("", entity.NewFatalError(m.id, err))
				return
			}
			if !yield(w, nil) {
				return
			}
		}
	}
}

func mockProposal(req *entity.LLMRequest) string {
	var prompt strings.Builder
	for _, msg := range req.Messages {
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}

	var b strings.Builder
	b.WriteString("# Project Proposal (MOCK)\n\n")
	matches := sectionLine.FindAllStringSubmatch(prompt.String(), -1)
	if len(matches) == 0 {
		b.WriteString("## Summary\n\nThis proposal was drafted from the interview answers.\n")
		return b.String()
	}
	for _, match := range matches {
		title := strings.TrimSpace(match[1])
		fmt.Fprintf(&b, "## %s\n\nThis section was drafted from the interview answers.\n\n", title)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
