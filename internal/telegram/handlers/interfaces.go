package handlers

import (
	"context"

	"github.com/futig/proposal-backend/internal/entity"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type SessionUsecase interface {
	CreateSession(ctx context.Context, req *entity.CreateSessionRequest) (*entity.CreateSessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID string, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error)
	NextQuestion(ctx context.Context, sessionID string, skipped ...string) (*entity.NextQuestion, error)
	Abandon(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
}

type Synthesizer interface {
	Generate(ctx context.Context, sessionID string, format entity.ProposalFormat) (*entity.ProposalDraft, error)
	Latest(ctx context.Context, sessionID string) (*entity.ProposalDraft, error)
}

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}
