package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibranic/central/internal/api/alerts"
	"github.com/vibranic/central/internal/api/apps"
	"github.com/vibranic/central/internal/api/auth"
	"github.com/vibranic/central/internal/api/dashboard"
	"github.com/vibranic/central/internal/api/middleware"
	"github.com/vibranic/central/internal/api/telemetry"
	"github.com/vibranic/central/internal/api/uptime"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Create admin token service
	tokens := auth.NewTokenService(s.config.AdminSecret, s.config.AdminTokenTTL)

	// Per-API-key ingestion rate limiter
	keyLimiter := middleware.NewKeyLimiter(s.config.RateLimitPerKey, s.config.RateLimitBurst)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	telemetryHandler := telemetry.NewHandler(s.telemetry, s.evaluator, s.config.QueryTimeout)
	appHandler := apps.NewHandler(s.storage, s.telemetry, s.config.QueryTimeout)
	alertHandler := alerts.NewHandler(s.storage, s.config.QueryTimeout)
	uptimeHandler := uptime.NewHandler(s.storage, s.telemetry, s.config.QueryTimeout)
	dashboardHandler := dashboard.NewHandler(s.storage, s.telemetry, s.config.QueryTimeout)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion (API key auth, rate limited per key)
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.storage.Apps()))
			r.Use(middleware.RateLimitByApp(keyLimiter))
			r.Post("/events", telemetryHandler.IngestEvent)
			r.Post("/metrics", telemetryHandler.IngestMetrics)
		})

		// Telemetry reads (internal, unauthenticated)
		r.Get("/events", telemetryHandler.ListEvents)
		r.Get("/metrics", telemetryHandler.ListMetrics)
		r.Get("/uptime/{appID}", uptimeHandler.Get)
		r.Get("/dashboard", dashboardHandler.Get)

		// Admin routes (bearer token)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(tokens))

			r.Route("/apps", func(r chi.Router) {
				r.Get("/", appHandler.List)
				r.Post("/", appHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", appHandler.Get)
					r.Put("/", appHandler.Update)
					r.Delete("/", appHandler.Delete)
					r.Post("/regenerate-key", appHandler.RegenerateKey)
				})
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", alertHandler.List)
				r.Post("/", alertHandler.Create)
				r.Get("/history", alertHandler.History)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", alertHandler.Get)
					r.Put("/", alertHandler.Update)
					r.Delete("/", alertHandler.Delete)
				})
			})
		})
	})

	// Health checks (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
