package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/example/notecal/internal/api"
	"github.com/example/notecal/internal/config"
	"github.com/example/notecal/internal/http/ratelimit"
	"github.com/example/notecal/internal/metrics"
	"github.com/example/notecal/internal/store"
	"github.com/example/notecal/internal/syncer"
)

// NewRouter wires all HTTP routes for the calendar API.
func NewRouter(cfg *config.Config, st *store.Store, pusher *syncer.Pusher) http.Handler {
	r := chi.NewRouter()

	// Import and sync move whole calendars; keep them on a tight budget.
	heavyLimiter := ratelimit.New(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	apiHandler := api.NewHandler(st, pusher, cfg.Import.MaxBodyBytes)

	r.Route("/api", func(r chi.Router) {
		r.Post("/events", apiHandler.CreateEvent)
		r.Get("/events", apiHandler.ListEvents)
		r.Get("/events/{id}", apiHandler.GetEvent)
		r.Put("/events/{id}", apiHandler.UpdateEvent)
		r.Delete("/events/{id}", apiHandler.DeleteEvent)

		r.Post("/patterns", apiHandler.CreatePattern)
		r.Get("/patterns/{id}", apiHandler.GetPattern)
		r.Delete("/patterns/{id}", apiHandler.DeletePattern)
		r.Post("/patterns/{id}/exceptions", apiHandler.AddException)
		r.Delete("/patterns/{id}/exceptions/{exceptionID}", apiHandler.RemoveException)

		r.Get("/occurrences", apiHandler.Occurrences)
		r.Get("/conflicts", apiHandler.Conflicts)

		r.Group(func(r chi.Router) {
			r.Use(heavyLimiter.Middleware())
			r.Post("/import", apiHandler.Import)
			r.Get("/export", apiHandler.Export)
			r.Post("/sync", apiHandler.Sync)
		})
	})

	return r
}
