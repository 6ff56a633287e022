/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a calendar frontend

ROUTE GROUPS:
  /api/leave/*       Leave request lifecycle
  /api/people/*      Per-person queries
  /api/managers/*    Manager queues and employee history
  /api/calendar/*    Calendar event feed
  /api/admin/*       Admin operations
  /webhook/commands  Slash-command webhook (HMAC-verified)

SEE ALSO:
  - handlers.go: Handler implementations
  - commands.go: Slash-command dispatch
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. signingSecret
// guards the webhook; empty disables verification (development only).
func NewRouter(h *Handler, signingSecret string) *chi.Mux {
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
		// Leave lifecycle
		r.Route("/leave", func(r chi.Router) {
			r.Post("/", h.ApplyLeave)
			r.Post("/{id}/cancel", h.CancelLeave)
			r.Post("/{id}/approve", h.ApproveLeave)
			r.Post("/{id}/decline", h.DeclineLeave)
		})

		// Per-person queries
		r.Route("/people", func(r chi.Router) {
			r.Get("/{id}", h.GetPerson)
			r.Get("/{id}/pending", h.ListPending)
			r.Get("/{id}/past", h.ListPast)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.GetLedger)
		})

		// Manager queues
		r.Route("/managers", func(r chi.Router) {
			r.Get("/{id}/pending", h.ListManagerPending)
			r.Get("/{id}/employees/{eid}/history", h.EmployeeHistory)
		})

		// Calendar feed
		r.Get("/calendar/{id}/events", h.CalendarEvents)

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Post("/managers", h.CreateManager)
			r.Get("/managers", h.ListManagers)
			r.Post("/promotions", h.PromotePerson)
			r.Post("/mappings", h.AssignMapping)
			r.Post("/admins", h.GrantAdmin)
			r.Get("/admins", h.ListAdmins)
			r.Get("/users", h.ListUsers)
			r.Post("/accrual/run", h.RunAccrual)
		})
	})

	// Slash-command webhook
	r.Route("/webhook", func(r chi.Router) {
		r.Use(verifySignature(signingSecret))
		r.Post("/commands", h.HandleCommand)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
