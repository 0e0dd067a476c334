/**
 * @description
 * HTTP router setup for the collections service using go-chi/chi.
 */
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/transfa/collections-service/internal/logger"
	"go.uber.org/zap"
)

// NewRouter creates a new Chi router and registers the collections routes.
func NewRouter(h *Handler, jwtSecret, internalKey string, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.handleHealth)

	r.Route("/internal/collections", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/sweep", h.handleRunSweep)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", h.handleRegisterClient)
			r.Get("/", h.handleListClients)
			r.Get("/{id}", h.handleGetClient)
			r.Post("/{id}/block", h.handleBlockClient)
			r.Post("/{id}/release", h.handleReleaseClient)
		})

		r.Route("/charges", func(r chi.Router) {
			r.Post("/", h.handleIssueCharge)
			r.Get("/", h.handleListCharges)
			r.Get("/{id}", h.handleGetCharge)
			r.Post("/{id}/send", h.handleSendCharge)
			r.Post("/{id}/resend", h.handleResendCharge)
			r.Post("/{id}/status", h.handleSetChargeStatus)
			r.Post("/{id}/reopen", h.handleReopenCharge)
			r.Get("/{id}/history", h.handleGetHistory)
		})

		r.Get("/history", h.handleListHistory)
		r.Get("/statistics", h.handleGetStatistics)
	})

	return r
}
