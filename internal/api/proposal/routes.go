package proposal

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers proposal routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/formats", h.Formats)
	r.Post("/sessions/{id}/proposals", h.Generate)
	r.Get("/sessions/{id}/proposals", h.ListVersions)
	r.Get("/sessions/{id}/proposals/latest", h.Latest)
}

// RegisterStreamRoutes registers the SSE route, which must not sit behind a request timeout.
func RegisterStreamRoutes(r chi.Router, h *Handler) {
	r.Get("/sessions/{id}/proposals/stream", h.Stream)
}
