package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/futig/proposal-backend/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	usecase SessionUsecase
}

func NewHandler(usecase SessionUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "CreateSession")

	var req entity.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctxzap.Info(ctx, "failed to decode request body", zap.Error(err))
		response.Error(w, entity.KindBadRequest, "invalid request body", nil)
		return
	}

	resp, err := h.usecase.CreateSession(ctx, &req)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Created(w, resp)
}

// GetSession handles GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "GetSession"), sessionID)

	session, err := h.usecase.GetSession(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, session)
}

// SubmitAnswer handles POST /sessions/{id}/answers
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "SubmitAnswer"), sessionID)

	var req entity.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctxzap.Info(ctx, "failed to decode request body", zap.Error(err))
		response.Error(w, entity.KindBadRequest, "invalid request body", nil)
		return
	}

	resp, err := h.usecase.SubmitAnswer(ctx, sessionID, &req)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			response.JSON(w, http.StatusUnprocessableEntity, entity.SubmitAnswerResponse{
				Success: false,
				Kind:    entity.KindValidation,
				Message: verr.Reason,
			})
			return
		}
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, resp)
}

// NextQuestion handles GET /sessions/{id}/questions/next
func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "NextQuestion"), sessionID)

	next, err := h.usecase.NextQuestion(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, next)
}

// Unanswered handles GET /sessions/{id}/questions/unanswered
func (h *Handler) Unanswered(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "Unanswered"), sessionID)

	questions, err := h.usecase.Unanswered(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, map[string]any{"questions": questions})
}

// Complete handles POST /sessions/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "Complete"), sessionID)

	session, err := h.usecase.Complete(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, session)
}

// Abandon handles POST /sessions/{id}/abandon
func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "Abandon"), sessionID)

	session, err := h.usecase.Abandon(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, session)
}
