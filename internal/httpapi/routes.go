package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DoyleJ11/dance-area-backend/internal/hub"
	"github.com/DoyleJ11/dance-area-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, gatherer prometheus.Gatherer, wsOpts ws.Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/areas", ListAreas(h))
	r.Get("/areas/{id}", GetArea(h))
	r.Get("/ws", ws.Handler(h, wsOpts))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
