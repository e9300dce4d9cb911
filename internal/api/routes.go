package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"betlive/internal/metrics"
)

// Routes assembles the full HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger())
	r.Use(middleware.Recoverer)

	// Client-facing WebSocket endpoints.
	r.Get("/ws/realtime", s.RealtimeWSHandler)
	r.Get("/ws/notifications", s.NotificationsWSHandler)

	// Service-facing ingest API. Settlement, wallet, and club backends push
	// events here; clients never call these.
	r.Route("/v1", func(r chi.Router) {
		r.Get("/realtime/stats", s.StatsHandler)
		r.Group(func(r chi.Router) {
			r.Use(s.requireService)
			r.Post("/bets/{betID}/events", s.BetEventsHandler)
			r.Post("/activity", s.ActivityHandler)
			r.Post("/users/{userID}/notifications", s.UserNotificationHandler)
			r.Post("/notifications/broadcast", s.BroadcastNotificationHandler)
		})
	})

	// Diagnostics and docs.
	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Get("/debug/info", s.DebugInfoHandler)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", s.OpenAPIHandler)
	r.Get("/docs", s.DocsHandler)
	r.Get("/swagger", s.SwaggerHandler)

	return r
}
