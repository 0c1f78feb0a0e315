package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Post("/chat", h.Chat)
			r.Post("/reports", h.GenerateReport)
			r.Route("/engagements/{engagementID}/reports", func(r chi.Router) {
				r.Get("/", h.ListReports)
				r.Get("/{period}", h.GetReport)
				r.Post("/{period}/publish", h.PublishReport)
			})
		})
	})

	return r
}
