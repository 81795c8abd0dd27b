package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentsync/internal/platform/config"
	"consentsync/internal/platform/metrics"
	"consentsync/internal/platform/middleware"
)

// SyncPrefix is where the sync endpoints are mounted below the base path.
const SyncPrefix = "/fhir-consent"

// NewRouter builds the service router: sync endpoints under
// <base>/fhir-consent, health under <base>/health and <base>/live, readiness
// at /ready and Prometheus metrics at /metrics.
func NewRouter(cfg config.Server, h *Handler, health *Health, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/ready", health.HandleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(cfg.BasePath, func(r chi.Router) {
		r.Get("/health", health.HandleReady)
		r.Get("/live", health.HandleLive)

		r.Route(SyncPrefix, func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.RequireTenant(logger))
			h.Register(r)
		})
	})
	return r
}
