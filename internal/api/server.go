package api

import (
	"net/http"
	"time"

	"github.com/futig/proposal-backend/internal/api/docs"
	"github.com/futig/proposal-backend/internal/api/middleware"
	proposalapi "github.com/futig/proposal-backend/internal/api/proposal"
	sessionapi "github.com/futig/proposal-backend/internal/api/session"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries what SetupRouter needs besides the handlers.
type RouterConfig struct {
	RequestTimeout time.Duration
	Registry       *prometheus.Registry
}

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	sessionHandler *sessionapi.Handler,
	proposalHandler *proposalapi.Handler,
	cfg RouterConfig,
	logger *zap.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)          // Recover from panics
	r.Use(chimiddleware.RequestID)          // Add request ID
	r.Use(middleware.Logger(logger))        // Log requests
	r.Use(middleware.CORS)                  // Handle CORS
	r.Use(middleware.Metrics(cfg.Registry)) // Count requests

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		// streams outlive the request timeout
		proposalapi.RegisterStreamRoutes(r, proposalHandler)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
			sessionapi.RegisterRoutes(r, sessionHandler)
			proposalapi.RegisterRoutes(r, proposalHandler)
		})
	})

	return r
}
