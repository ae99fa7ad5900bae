package validator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	verdict *entity.SemanticVerdict
	err     error
	calls   int
}

func (s *stubEvaluator) Evaluate(context.Context, string, string, entity.QuestionType) (*entity.SemanticVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

func TestAnswerValidator_RuleLayer(t *testing.T) {
	tests := []struct {
		name   string
		qtype  entity.QuestionType
		value  string
		reason string
	}{
		{"blank", entity.QuestionTypeGeneral, "   \n\t", "Answer cannot be empty"},
		{"blank budget", entity.QuestionTypeBudget, " ", "Answer cannot be empty"},
		{"too long", entity.QuestionTypeGeneral, strings.Repeat("x", MaxAnswerLength+1), "too long"},
		{"general too short", entity.QuestionTypeGeneral, "ok", "too short"},
		{"budget zero", entity.QuestionTypeBudget, "0", "Budget must be positive"},
		{"budget negative", entity.QuestionTypeBudget, "-$5,000", "Budget must be positive"},
		{"budget words", entity.QuestionTypeBudget, "lots of money", "Budget must be a valid number"},
		{"budget infinite", entity.QuestionTypeBudget, "Inf", "Budget must be a valid number"},
		{"budget too large", entity.QuestionTypeBudget, "$20,000,000", "must not exceed"},
		{"timeline short", entity.QuestionTypeTimeline, "soon", "too short"},
		{"timeline vague", entity.QuestionTypeTimeline, "whenever it is done", "must be a duration"},
		{"timeline too long", entity.QuestionTypeTimeline, "5 years", "between 1 day and 2 years"},
		{"unknown type uses general", entity.QuestionType("PRIORITY"), "no", "too short"},
	}

	v := NewAnswerValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), "key", "question", tt.qtype, tt.value)
			require.Error(t, err)

			var verr *entity.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, entity.ValidationLayerRule, verr.Layer)
			assert.Equal(t, "key", verr.QuestionKey)
			assert.Contains(t, verr.Reason, tt.reason)
			assert.ErrorIs(t, err, entity.ErrValidation)
		})
	}
}

func TestAnswerValidator_AcceptsValidAnswers(t *testing.T) {
	tests := []struct {
		qtype entity.QuestionType
		value string
	}{
		{entity.QuestionTypeGeneral, "A mobile app for booking"},
		{entity.QuestionTypeBudget, "$50,000"},
		{entity.QuestionTypeBudget, "12000.50"},
		{entity.QuestionTypeBudget, " 10,000,000 "},
		{entity.QuestionTypeTimeline, "3 months"},
		{entity.QuestionTypeTimeline, "6-8 weeks"},
		{entity.QuestionTypeTimeline, "about two years"},
		{entity.QuestionTypeTimeline, "90 days"},
		{entity.QuestionTypeTimeline, "1 quarter"},
		{entity.QuestionTypeTimeline, "2026-03-01"},
		{entity.QuestionTypeTimeline, "by March 2026"},
		{entity.QuestionTypeTimeline, "March 1, 2026"},
		{entity.QuestionTypeTimeline, "end of June 2027"},
		{entity.QuestionTypeTimeline, "01/03/2026"},
	}

	v := NewAnswerValidator()
	for _, tt := range tests {
		t.Run(string(tt.qtype)+"/"+tt.value, func(t *testing.T) {
			outcome, err := v.Validate(context.Background(), "key", "q", tt.qtype, tt.value)
			require.NoError(t, err)
			assert.True(t, outcome.Passing)
		})
	}
}

func TestAnswerValidator_PolicyIsExtensible(t *testing.T) {
	onlyYesNo := func(value string) error {
		if value != "yes" && value != "no" {
			return errors.New("answer yes or no")
		}
		return nil
	}
	v := NewAnswerValidator(WithRules("CONFIRM", onlyYesNo))

	_, err := v.Validate(context.Background(), "k", "q", "CONFIRM", "maybe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer yes or no")

	_, err = v.Validate(context.Background(), "k", "q", "CONFIRM", "yes")
	assert.NoError(t, err)
}

func TestAnswerValidator_SemanticLayer(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		v := NewAnswerValidator()
		assert.False(t, v.SemanticEnabled())
		outcome, err := v.Validate(context.Background(), "k", "q", entity.QuestionTypeGeneral, "something relevant")
		require.NoError(t, err)
		assert.True(t, outcome.Passing)
	})

	t.Run("failing verdict rejects", func(t *testing.T) {
		eval := &stubEvaluator{verdict: &entity.SemanticVerdict{Passing: false, Reason: "talks about cats"}}
		v := NewAnswerValidator(WithSemantic(eval, time.Second))
		require.True(t, v.SemanticEnabled())

		_, err := v.Validate(context.Background(), "scope", "What is the scope?", entity.QuestionTypeGeneral, "I like cats a lot")
		var verr *entity.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, entity.ValidationLayerSemantic, verr.Layer)
		assert.Contains(t, verr.Reason, "semantic inconsistency")
		assert.Equal(t, 1, eval.calls)
	})

	t.Run("rule failure skips evaluator", func(t *testing.T) {
		eval := &stubEvaluator{verdict: &entity.SemanticVerdict{Passing: true}}
		v := NewAnswerValidator(WithSemantic(eval, time.Second))

		_, err := v.Validate(context.Background(), "budget", "Budget?", entity.QuestionTypeBudget, "-1")
		require.Error(t, err)
		assert.Zero(t, eval.calls)
	})

	t.Run("evaluator failure degrades to pass", func(t *testing.T) {
		eval := &stubEvaluator{err: entity.ErrAllProvidersExhausted}
		v := NewAnswerValidator(WithSemantic(eval, time.Second))

		outcome, err := v.Validate(context.Background(), "k", "q", entity.QuestionTypeGeneral, "a fine answer")
		require.NoError(t, err)
		assert.True(t, outcome.Passing)
	})

	t.Run("nil evaluator keeps layer off", func(t *testing.T) {
		v := NewAnswerValidator(WithSemantic(nil, time.Second))
		assert.False(t, v.SemanticEnabled())
	})
}

func TestValidator_Requests(t *testing.T) {
	v := NewValidator()

	assert.ErrorIs(t, v.ValidateCreateSession(&entity.CreateSessionRequest{UserName: "n"}), entity.ErrMissingField)
	bad := "not-an-email"
	assert.ErrorIs(t, v.ValidateCreateSession(&entity.CreateSessionRequest{UserID: "u", UserName: "n", UserEmail: &bad}), entity.ErrInvalidParameter)
	assert.NoError(t, v.ValidateCreateSession(&entity.CreateSessionRequest{UserID: "u", UserName: "n"}))

	assert.ErrorIs(t, v.ValidateSubmitAnswer(&entity.SubmitAnswerRequest{Answer: "x"}), entity.ErrMissingField)

	format, err := v.ValidateGenerateProposal(&entity.GenerateProposalRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalFormatDetailed, format)

	_, err = v.ValidateGenerateProposal(&entity.GenerateProposalRequest{Format: "poem"})
	assert.ErrorIs(t, err, entity.ErrInvalidFormat)

	_, err = v.ValidateGenerateProposal(&entity.GenerateProposalRequest{Format: "brief", CallbackURL: "ftp://x"})
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)
}
