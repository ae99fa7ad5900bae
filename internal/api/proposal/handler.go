package proposal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/formatter"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/futig/proposal-backend/internal/pkg/response"
	"github.com/futig/proposal-backend/internal/pkg/validator"
	"github.com/futig/proposal-backend/internal/usecase/proposal"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	synth      Synthesizer
	validator  *validator.Validator
	formatters *formatter.Factory
}

func NewHandler(synth Synthesizer, validator *validator.Validator) *Handler {
	return &Handler{
		synth:      synth,
		validator:  validator,
		formatters: formatter.NewFactory(),
	}
}

// Formats handles GET /formats
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]any{"formats": proposal.Formats()})
}

// Generate handles POST /sessions/{id}/proposals. With a callback_url the
// generation runs in the background and the outcome is delivered as a callback event.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "GenerateProposal"), sessionID)

	var req entity.GenerateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		ctxzap.Info(ctx, "failed to decode request body", zap.Error(err))
		response.Error(w, entity.KindBadRequest, "invalid request body", nil)
		return
	}

	format, err := h.validator.ValidateGenerateProposal(&req)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	if req.CallbackURL != "" {
		requestID, err := h.synth.GenerateAsync(ctx, sessionID, format, req.CallbackURL, req.IncludeMetadata)
		if err != nil {
			response.FromError(ctx, w, err)
			return
		}
		response.Accepted(w, map[string]string{
			"status":     "accepted",
			"request_id": requestID,
			"message":    "proposal is being generated",
		})
		return
	}

	draft, err := h.synth.Generate(ctx, sessionID, format)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Created(w, proposal.ToGenerateResponse(draft, req.IncludeMetadata))
}

// Stream handles GET /sessions/{id}/proposals/stream. Tokens are sent as SSE
// data events; the stream ends with [DONE] once the draft is stored, or with
// [ERROR] <reason>. A client disconnect cancels generation.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "StreamProposal"), sessionID)

	format, err := entity.ParseProposalFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	// preconditions fail as plain JSON errors before the event stream starts
	stream, err := h.synth.Stream(ctx, sessionID, format)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	defer stream.Cancel()

	sse, err := response.NewSSE(w)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	tokens, err := stream.Tokens()
	if err != nil {
		_ = sse.Fail(err.Error())
		return
	}
	for tok := range tokens {
		if err := sse.Data(tok); err != nil {
			ctxzap.Info(ctx, "client went away during stream", zap.Error(err))
			break
		}
	}

	draft, err := stream.Result()
	if err != nil {
		if proposal.IsCancelled(err) {
			return
		}
		_ = sse.Fail(err.Error())
		return
	}
	ctxzap.Info(ctx, "proposal streamed", zap.Int("version", draft.Version))
	_ = sse.Done()
}

// ListVersions handles GET /sessions/{id}/proposals
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "ListProposalVersions"), sessionID)

	drafts, err := h.synth.Versions(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	response.Success(w, map[string]any{"versions": proposal.ToVersionDTOs(drafts)})
}

// Latest handles GET /sessions/{id}/proposals/latest?export=markdown|docx|pdf
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "LatestProposal"), sessionID)

	export, err := entity.ParseExportFormat(r.URL.Query().Get("export"))
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	draft, err := h.synth.Latest(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	if export == "" {
		response.Success(w, draft)
		return
	}

	fmtr, err := h.formatters.Create(export)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}
	body, err := fmtr.Format(draft)
	if err != nil {
		response.FromError(ctx, w, fmt.Errorf("export draft: %w", err))
		return
	}

	ctxzap.Info(ctx, "proposal exported", zap.String("export", string(export)), zap.Int("version", draft.Version))
	w.Header().Set("Content-Type", fmtr.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.FileName(draft, fmtr)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
