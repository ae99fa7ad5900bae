package handlers

import (
	"context"
	"strconv"

	"github.com/futig/proposal-backend/internal/pkg/formatter"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/futig/proposal-backend/internal/telegram/render"
	"github.com/futig/proposal-backend/internal/telegram/state"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Handler runs the interview over Telegram chats.
type Handler struct {
	sender   Sender
	sessions SessionUsecase
	synth    Synthesizer
	states   *state.Store
	exports  *formatter.Factory
}

func NewHandler(sender Sender, sessions SessionUsecase, synth Synthesizer, states *state.Store) *Handler {
	return &Handler{
		sender:   sender,
		sessions: sessions,
		synth:    synth,
		states:   states,
		exports:  formatter.NewFactory(),
	}
}

// HandleMessage routes a command or a plain text answer.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx = logger.AddFields(ctx, zap.Int64("chat_id", chatID))

	if !msg.IsCommand() {
		h.Answer(ctx, msg)
		return
	}

	switch msg.Command() {
	case "start":
		h.Start(ctx, msg)
	case "help":
		h.send(ctx, chatID, render.MsgHelp)
	case "skip":
		h.Skip(ctx, chatID)
	case "proposal":
		h.Proposal(ctx, chatID)
	case "cancel":
		h.Cancel(ctx, chatID)
	default:
		h.send(ctx, chatID, render.MsgUnknownCommand)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	h.sendWith(ctx, tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendWith(ctx context.Context, msg tgbotapi.MessageConfig) {
	if _, err := h.sender.Send(msg); err != nil {
		ctxzap.Error(ctx, "failed to send telegram message", zap.Error(err))
	}
}

func (h *Handler) sendError(ctx context.Context, chatID int64, err error) {
	ctxzap.Warn(ctx, "telegram request failed", zap.Error(err))
	h.send(ctx, chatID, render.Error(err))
}

func (h *Handler) answerCallback(ctx context.Context, callbackID, text string) {
	if _, err := h.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		ctxzap.Warn(ctx, "failed to answer callback", zap.Error(err))
	}
}

func userID(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

func userName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
