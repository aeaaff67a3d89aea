// Package httpapi exposes the submission pipeline over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/photokeeper/internal/logging"
)

// NewRouter mounts the public routes. allowedOrigins configures CORS;
// "*" allows any origin.
func NewRouter(h *Handler, allowedOrigins []string, logger logging.Logger) *chi.Mux {
	if logger == nil {
		logger = logging.Nop{}
	}
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(withRequestID)
	r.Use(accessLog(logger.With("module", "http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Post("/submit", h.Submit)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/submissions", h.Submit)
	})

	return r
}
