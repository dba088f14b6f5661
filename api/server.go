/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/wallet/*    Balance, history, credit, debit, transfer
  /api/coupons/*   Validation and redemption
  /api/cost        Discounted cost computation
  /api/admin/*     Catalog management (coupons, categories, rules, users,
                   instances)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Wallet routes
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/{userID}/balance", h.GetBalance)
			r.Get("/{userID}/transactions", h.GetTransactions)
			r.Post("/credit", h.Credit)
			r.Post("/debit", h.Debit)
			r.Post("/transfer", h.Transfer)
		})

		// Coupon routes
		r.Route("/coupons", func(r chi.Router) {
			r.Post("/check", h.CheckCoupon)
			r.Post("/apply", h.ApplyCoupon)
		})

		// Cost computation
		r.Post("/cost", h.Cost)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/coupons", h.CreateCoupon)
			r.Post("/categories", h.CreateCategory)
			r.Post("/rules", h.CreateRule)
			r.Post("/users", h.CreateUser)
			r.Post("/instances", h.CreateInstance)
		})
	})

	return r
}
