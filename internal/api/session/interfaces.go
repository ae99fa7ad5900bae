package session

import (
	"context"

	"github.com/futig/proposal-backend/internal/entity"
)

type SessionUsecase interface {
	CreateSession(ctx context.Context, req *entity.CreateSessionRequest) (*entity.CreateSessionResponse, error)
	GetSession(ctx context.Context, id string) (*entity.SessionDTO, error)
	SubmitAnswer(ctx context.Context, sessionID string, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error)
	NextQuestion(ctx context.Context, sessionID string, skipped ...string) (*entity.NextQuestion, error)
	Unanswered(ctx context.Context, sessionID string) ([]entity.Question, error)
	Complete(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	Abandon(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
}
