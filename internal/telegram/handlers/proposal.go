package handlers

import (
	"context"
	"fmt"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/formatter"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/futig/proposal-backend/internal/telegram/keyboard"
	"github.com/futig/proposal-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Proposal offers the format buttons.
func (h *Handler) Proposal(ctx context.Context, chatID int64) {
	if _, ok := h.states.Get(chatID); !ok {
		h.send(ctx, chatID, render.MsgNoSession)
		return
	}
	msg := tgbotapi.NewMessage(chatID, render.MsgChooseFormat)
	msg.ReplyMarkup = keyboard.Formats(entity.ProposalFormats)
	h.sendWith(ctx, msg)
}

// HandleCallback handles inline button presses.
func (h *Handler) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	h.answerCallback(ctx, query.ID, "")
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	ctx = logger.AddFields(ctx, zap.Int64("chat_id", chatID))

	data, err := keyboard.ParseCallback(query.Data)
	if err != nil {
		ctxzap.Warn(ctx, "malformed callback data", zap.String("data", query.Data))
		return
	}

	st, ok := h.states.Get(chatID)
	if !ok {
		h.send(ctx, chatID, render.MsgNoSession)
		return
	}

	switch data.Action {
	case keyboard.ActionFormat:
		h.generate(ctx, chatID, st.SessionID, data.Value)
	case keyboard.ActionExport:
		h.export(ctx, chatID, st.SessionID, data.Value)
	default:
		ctxzap.Warn(ctx, "unknown callback action", zap.String("action", data.Action))
	}
}

func (h *Handler) generate(ctx context.Context, chatID int64, sessionID, rawFormat string) {
	format, err := entity.ParseProposalFormat(rawFormat)
	if err != nil {
		h.sendError(ctx, chatID, err)
		return
	}
	h.send(ctx, chatID, fmt.Sprintf(render.MsgGenerating, format))

	draft, err := h.synth.Generate(ctx, sessionID, format)
	if err != nil {
		h.sendError(ctx, chatID, err)
		return
	}

	for _, part := range render.Chunk(draft.Content, render.MaxMessageLength) {
		h.send(ctx, chatID, part)
	}
	h.sendFile(ctx, chatID, draft, entity.ExportPDF)

	msg := tgbotapi.NewMessage(chatID, render.MsgChooseExport)
	msg.ReplyMarkup = keyboard.Exports()
	h.sendWith(ctx, msg)
}

func (h *Handler) export(ctx context.Context, chatID int64, sessionID, rawFormat string) {
	format, err := entity.ParseExportFormat(rawFormat)
	if err != nil || format == "" {
		h.sendError(ctx, chatID, fmt.Errorf("%w: export format %q", entity.ErrInvalidFormat, rawFormat))
		return
	}
	draft, err := h.synth.Latest(ctx, sessionID)
	if err != nil {
		h.sendError(ctx, chatID, err)
		return
	}
	h.sendFile(ctx, chatID, draft, format)
}

func (h *Handler) sendFile(ctx context.Context, chatID int64, draft *entity.ProposalDraft, format entity.ExportFormat) {
	f, err := h.exports.Create(format)
	if err != nil {
		h.sendError(ctx, chatID, err)
		return
	}
	data, err := f.Format(draft)
	if err != nil {
		ctxzap.Error(ctx, "failed to render proposal file", zap.String("export", string(format)), zap.Error(err))
		h.send(ctx, chatID, render.MsgGenericError)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: formatter.FileName(draft, f), Bytes: data})
	if _, err := h.sender.Send(doc); err != nil {
		ctxzap.Error(ctx, "failed to send proposal file", zap.Error(err))
	}
}
