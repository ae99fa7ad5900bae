package validator

import (
	"context"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const semanticFailureReason = "semantic inconsistency"

// Policy maps a question type to the rules its answers must satisfy.
// Types without an entry use the GENERAL rules.
type Policy map[entity.QuestionType][]Rule

// DefaultPolicy returns a fresh copy of the built-in rule table.
func DefaultPolicy() Policy {
	return Policy{
		entity.QuestionTypeGeneral:  {GeneralText},
		entity.QuestionTypeBudget:   {PositiveBudget},
		entity.QuestionTypeTimeline: {ParseableTimeline},
	}
}

// SemanticEvaluator judges whether an answer fits its question.
type SemanticEvaluator interface {
	Evaluate(ctx context.Context, question, answer string, qtype entity.QuestionType) (*entity.SemanticVerdict, error)
}

// AnswerValidator runs the rule layer and, when enabled, the semantic layer.
// It holds no per-call state and is safe for concurrent use.
type AnswerValidator struct {
	common          []Rule
	policy          Policy
	evaluator       SemanticEvaluator
	semanticEnabled bool
	semanticTimeout time.Duration
}

type Option func(*AnswerValidator)

// WithRules replaces the rules for one question type.
func WithRules(qtype entity.QuestionType, rules ...Rule) Option {
	return func(v *AnswerValidator) {
		v.policy[qtype] = rules
	}
}

// WithSemantic turns the semantic layer on. A nil evaluator leaves it off.
func WithSemantic(evaluator SemanticEvaluator, timeout time.Duration) Option {
	return func(v *AnswerValidator) {
		v.evaluator = evaluator
		v.semanticEnabled = evaluator != nil
		v.semanticTimeout = timeout
	}
}

func NewAnswerValidator(opts ...Option) *AnswerValidator {
	v := &AnswerValidator{
		common: []Rule{NotBlank, MaxLength},
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SemanticEnabled reports the capability flag.
func (v *AnswerValidator) SemanticEnabled() bool {
	return v.semanticEnabled
}

// Validate checks one answer. A rejection is a *entity.ValidationError; the
// returned outcome is what gets stored with an accepted answer.
func (v *AnswerValidator) Validate(ctx context.Context, key, question string, qtype entity.QuestionType, value string) (entity.ValidationOutcome, error) {
	if err := v.checkRules(qtype, value); err != nil {
		return entity.ValidationOutcome{}, &entity.ValidationError{
			QuestionKey: key,
			Layer:       entity.ValidationLayerRule,
			Reason:      err.Error(),
		}
	}

	if !v.semanticEnabled {
		return entity.ValidationOutcome{Passing: true}, nil
	}

	evalCtx := ctx
	if v.semanticTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, v.semanticTimeout)
		defer cancel()
	}

	verdict, err := v.evaluator.Evaluate(evalCtx, question, value, qtype)
	if err != nil {
		// the semantic layer never rejects an answer on its own failure
		ctxzap.Warn(ctx, "semantic validation unavailable, accepting answer",
			zap.String("question_key", key),
			zap.Error(err),
		)
		return entity.ValidationOutcome{Passing: true, Reason: "semantic check skipped"}, nil
	}

	if !verdict.Passing {
		reason := semanticFailureReason
		if verdict.Reason != "" {
			reason += ": " + verdict.Reason
		}
		return entity.ValidationOutcome{}, &entity.ValidationError{
			QuestionKey: key,
			Layer:       entity.ValidationLayerSemantic,
			Reason:      reason,
		}
	}

	return entity.ValidationOutcome{Passing: true, Reason: verdict.Reason}, nil
}

func (v *AnswerValidator) checkRules(qtype entity.QuestionType, value string) error {
	for _, rule := range v.common {
		if err := rule(value); err != nil {
			return err
		}
	}
	rules, ok := v.policy[qtype]
	if !ok {
		rules = v.policy[entity.QuestionTypeGeneral]
	}
	for _, rule := range rules {
		if err := rule(value); err != nil {
			return err
		}
	}
	return nil
}
