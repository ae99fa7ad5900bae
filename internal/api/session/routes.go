package session

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers session routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Post("/sessions/{id}/answers", h.SubmitAnswer)
	r.Get("/sessions/{id}/questions/next", h.NextQuestion)
	r.Get("/sessions/{id}/questions/unanswered", h.Unanswered)
	r.Post("/sessions/{id}/complete", h.Complete)
	r.Post("/sessions/{id}/abandon", h.Abandon)
}
