package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the HTTP router with all API endpoints. A nil registry
// disables /metrics.
func NewRouter(h *Handler, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(Logger)
	r.Use(PrivateSubnetOnly)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/targets", h.GetTargets)
		r.Get("/match", h.Match)
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	return r
}
