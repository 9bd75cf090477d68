/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the mobile client

INLINE RECONCILIATION:
  Every request under /api/beneficiaries first runs the status sweep, so a
  beneficiary who finished their program reads as completed on the next
  request even between scheduled sweeps. Sweep failures are logged and
  never block the request.

SEE ALSO:
  - handlers.go: Handler implementations
  - scheduler.go: the timed counterpart of the inline sweep
*/
package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/careflow/nutrition-engine/program"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Beneficiary routes, behind the inline status check
		r.Route("/beneficiaries", func(r chi.Router) {
			r.Use(h.inlineReconcile)

			r.Get("/", h.ListBeneficiaries)
			r.Post("/", h.CreateBeneficiary)
			r.Get("/{id}", h.GetBeneficiary)
			r.Put("/{id}/status", h.UpdateBeneficiaryStatus)
			r.Get("/{id}/days", h.ListDays)
			r.Post("/{id}/days", h.AddDay)
			r.Put("/{id}/days/{dayId}", h.SetAttendance)
			r.Delete("/{id}/days/{dayId}", h.RemoveDay)
		})

		// Distribution routes
		r.Route("/distributions", func(r chi.Router) {
			r.Get("/", h.ListDistributions)
			r.Post("/", h.CreateDistribution)
		})

		// Stock routes
		r.Route("/main-stock", func(r chi.Router) {
			r.Get("/", h.ListMainStock)
			r.Post("/", h.Restock)
		})
		r.Post("/stock-transfers", h.TransferStock)
		r.Get("/workers/{id}/stock", h.GetWorkerStock)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.TriggerReconcile)
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// inlineReconcile runs the status sweep before any beneficiary-path
// request. Failures are logged; the request proceeds regardless.
func (h *Handler) inlineReconcile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := program.ReconcileAll(r.Context(), h.Programs); err != nil {
			log.Printf("[Reconcile] inline sweep failed: %v", err)
		}
		next.ServeHTTP(w, r)
	})
}
