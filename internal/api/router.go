package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"water-monitor/internal/middleware"
)

// NewRouter mounts every endpoint. ws may be nil when no dashboard hub runs.
func NewRouter(h *Handler, ws http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/status", h.HandleStatus)
		r.Get("/history", h.HandleHistory)

		r.Post("/session/start", h.HandleStart)
		r.Post("/session/stop", h.HandleStop)

		r.Put("/alerts", h.HandleSetAlerts)
		r.Get("/alerts/log", h.HandleAlertLog)
		r.Put("/thresholds", h.HandleSetThresholds)

		if h.relay != nil {
			r.Post("/alert", h.relay.HandleAlert)
			r.Get("/test-telegram", h.relay.HandleTestTelegram)
		}
	})

	if ws != nil {
		r.Get("/ws", ws)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
