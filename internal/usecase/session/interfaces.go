package session

import (
	"context"

	"github.com/futig/proposal-backend/internal/entity"
)

type AnswerValidator interface {
	Validate(ctx context.Context, key, question string, qtype entity.QuestionType, value string) (entity.ValidationOutcome, error)
}

type QuestionSelector interface {
	Next(ctx context.Context, sess *entity.Session, skipped ...string) *entity.NextQuestion
	Unanswered(sess *entity.Session) []entity.Question
	Lookup(key string) (entity.Question, bool)
}
