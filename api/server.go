/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/backfill/*     Batch correction runs
  /api/reconcile/*    Counter reconciliation runs
  /api/*              Reference data and audit queries

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/backfill", func(r chi.Router) {
			r.Post("/bookings", h.BackfillBookings)
			r.Get("/bookings/preview", h.PreviewBookings)
			r.Post("/payouts", h.BackfillPayouts)
		})

		r.Route("/reconcile", func(r chi.Router) {
			r.Post("/sync-totals", h.SyncTotals)
			r.Post("/recalculate", h.Recalculate)
		})

		r.Get("/commission-tiers", h.ListCommissionTiers)
		r.Get("/hosts/{id}", h.GetHost)
		r.Get("/audit", h.QueryAudit)
	})

	return r
}
