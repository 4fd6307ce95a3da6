// Package router mounts every HTTP handler under /api/v1.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/dashboard"
	"github.com/skillswap/backend/internal/handlers"
	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/registry"
	"github.com/skillswap/backend/internal/services"
)

type Handlers struct {
	Auth      *auth.Handler
	Skills    *registry.Handler
	Bookings  *handlers.BookingHandler
	Dashboard *dashboard.Handler
}

// New returns the API handler. tokens guards everything except auth and the
// health and metrics endpoints.
func New(h Handlers, tokens middleware.TokenValidator, v *services.Validator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(tokens))

			r.Get("/account/me", h.Dashboard.GetMe)
			r.Get("/credit-ledger", h.Dashboard.ListCreditLedger)
			r.Get("/credit-ledger/audit", h.Dashboard.Audit)

			r.Get("/skills", h.Skills.ListSkills)
			r.Get("/skills/search", h.Skills.SearchSkills)
			r.With(middleware.ValidateBody(v.ValidateCreateSkill)).Post("/skills", h.Skills.CreateSkill)

			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", h.Bookings.List)
				r.With(middleware.ValidateBody(v.ValidateCreateBooking)).Post("/", h.Bookings.Create)
				r.Get("/requests", h.Bookings.IncomingRequests)
				r.Get("/my-requests", h.Bookings.MyRequests)
				r.Get("/upcoming", h.Bookings.Upcoming)
				r.Get("/completed", h.Bookings.Completed)
				r.Post("/cleanup-orphaned", h.Bookings.CleanupOrphaned)
				r.Post("/reset", h.Bookings.Reset)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Bookings.Get)
					r.Post("/accept", h.Bookings.Accept)
					r.Post("/reject", h.Bookings.Reject)
					r.Post("/cancel", h.Bookings.Cancel)
					r.Post("/complete", h.Bookings.Complete)
				})
			})
		})
	})
	return r
}
