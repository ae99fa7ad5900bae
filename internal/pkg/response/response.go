package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// StatusClientClosedRequest is reported when the caller went away mid-request.
const StatusClientClosedRequest = 499

var kindStatus = map[entity.ErrorKind]int{
	entity.KindValidation:         http.StatusUnprocessableEntity,
	entity.KindInsufficientData:   http.StatusUnprocessableEntity,
	entity.KindConflict:           http.StatusConflict,
	entity.KindInvalidState:       http.StatusConflict,
	entity.KindNotFound:           http.StatusNotFound,
	entity.KindBadRequest:         http.StatusBadRequest,
	entity.KindProvider:           http.StatusBadGateway,
	entity.KindStreamInterrupted:  http.StatusBadGateway,
	entity.KindProvidersExhausted: http.StatusServiceUnavailable,
	entity.KindCancelled:          StatusClientClosedRequest,
	entity.KindInternal:           http.StatusInternalServerError,
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind entity.ErrorKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Can't change response at this point, just log
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Error writes an error body of the given kind.
func Error(w http.ResponseWriter, kind entity.ErrorKind, message string, details any) {
	status := StatusOf(kind)
	JSON(w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Kind:    kind,
		Message: message,
		Details: details,
	})
}

// FromError classifies err and writes it. Internal failures are logged at
// error and their text is not echoed to the caller.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := entity.KindOf(err)
	message := err.Error()

	var details any
	var exhausted *entity.AllProvidersExhaustedError
	if errors.As(err, &exhausted) {
		details = map[string]any{"failures": exhausted.Failures, "aborted": exhausted.Aborted}
	}

	switch kind {
	case entity.KindInternal:
		ctxzap.Error(ctx, "request failed", zap.Error(err))
		message = "internal server error"
	case entity.KindValidation, entity.KindNotFound, entity.KindBadRequest, entity.KindCancelled:
		ctxzap.Info(ctx, "request rejected", zap.String("kind", string(kind)), zap.Error(err))
	default:
		ctxzap.Warn(ctx, "request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	Error(w, kind, message, details)
}

// Success writes a success response
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Accepted writes a 202 Accepted response
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
