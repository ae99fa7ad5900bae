package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/telegram/render"
	"github.com/futig/proposal-backend/internal/telegram/state"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Start opens a new session for the chat and asks the first question. A
// session already linked to the chat is left as it is.
func (h *Handler) Start(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	resp, err := h.sessions.CreateSession(ctx, &entity.CreateSessionRequest{
		UserID:   userID(msg.From),
		UserName: userName(msg.From),
		Metadata: map[string]any{"channel": "telegram", "chat_id": chatID},
	})
	if err != nil {
		h.sendError(ctx, chatID, err)
		return
	}

	next := resp.NextQuestion
	if next == nil {
		next = entity.DefaultNextQuestion()
	}
	h.states.Put(chatID, state.ChatState{SessionID: resp.SessionID, Current: next})

	ctxzap.Info(ctx, "telegram interview started", zap.String("session_id", resp.SessionID))
	h.send(ctx, chatID, render.MsgWelcome)
	h.send(ctx, chatID, render.Question(next))
}

// Answer submits msg as the answer to the chat's current question.
func (h *Handler) Answer(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st, ok := h.states.Get(chatID)
	if !ok {
		h.send(ctx, chatID, render.MsgNoSession)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		h.send(ctx, chatID, render.Question(st.Current))
		return
	}

	cur := st.Current
	if cur == nil {
		cur = entity.DefaultNextQuestion()
	}
	_, err := h.sessions.SubmitAnswer(ctx, st.SessionID, &entity.SubmitAnswerRequest{
		Question:     cur.Key,
		Answer:       text,
		QuestionType: string(cur.Type),
		Metadata:     map[string]any{"channel": "telegram"},
	})
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			h.send(ctx, chatID, render.Rejected(verr.Reason))
			return
		}
		h.sendError(ctx, chatID, err)
		return
	}

	h.advance(ctx, chatID, st)
}

// Skip leaves the current question unanswered and asks another one.
func (h *Handler) Skip(ctx context.Context, chatID int64) {
	st, ok := h.states.Get(chatID)
	if !ok {
		h.send(ctx, chatID, render.MsgNoSession)
		return
	}
	if st.Current != nil && !st.IsSkipped(st.Current.Key) {
		st.Skipped = append(st.Skipped, st.Current.Key)
	}
	h.advance(ctx, chatID, st)
}

// Cancel abandons the chat's session.
func (h *Handler) Cancel(ctx context.Context, chatID int64) {
	st, ok := h.states.Get(chatID)
	if !ok {
		h.send(ctx, chatID, render.MsgNoSession)
		return
	}
	h.states.Delete(chatID)

	if _, err := h.sessions.Abandon(ctx, st.SessionID); err != nil {
		var invalid *entity.InvalidStateError
		if !errors.As(err, &invalid) {
			h.sendError(ctx, chatID, err)
			return
		}
	}
	h.send(ctx, chatID, render.MsgCancelled)
}

func (h *Handler) advance(ctx context.Context, chatID int64, st state.ChatState) {
	next, err := h.next(ctx, st)
	if err != nil {
		h.sendError(ctx, chatID, err)
		return
	}
	st.Current = next
	h.states.Put(chatID, st)
	h.send(ctx, chatID, render.Question(next))
}

// next asks the session for its next question, passing over what this chat skipped.
func (h *Handler) next(ctx context.Context, st state.ChatState) (*entity.NextQuestion, error) {
	return h.sessions.NextQuestion(ctx, st.SessionID, st.Skipped...)
}
