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
  /api/applications/*   Finance application lifecycle
  /api/schedules/*      Payment schedules, payments, simulations
  /api/overdue          Overdue reporting
  /api/admin/*          Admin operations

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		// Application routes
		r.Route("/applications", func(r chi.Router) {
			r.Get("/", h.ListApplications)
			r.Post("/", h.CreateApplication)
			r.Get("/{id}", h.GetApplication)
			r.Post("/{id}/approve", h.ApproveApplication)
		})

		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Get("/{id}", h.GetSchedule)
			r.Post("/{id}/payments", h.CommitPayment)
			r.Post("/{id}/simulate", h.SimulatePayment)
		})

		// Reporting routes
		r.Get("/overdue", h.OverdueReport)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/penalties/run", h.RunPenaltyBatch)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Customer Financing Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Customer Financing Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/applications">/api/applications</a> - List finance applications</li>
<li><a href="/api/schedules">/api/schedules</a> - List payment schedules</li>
<li><a href="/api/overdue">/api/overdue</a> - Overdue report</li>
</ul>
</body>
</html>`))
	})

	return r
}
