package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shehryarbajwa/importbridge/internal/metrics"
	"github.com/shehryarbajwa/importbridge/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(tokenHandler *TokenHandler, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Launches and token minting are rate limited per owner
	rateLimitedAPI := api.PathPrefix("").Subrouter()
	rateLimitedAPI.Use(RateLimitMiddleware(rateLimiter))

	rateLimitedAPI.HandleFunc("/sessions", h.LaunchSession).Methods("POST", "OPTIONS")
	rateLimitedAPI.HandleFunc("/tokens", tokenHandler.CreateToken).Methods("POST", "OPTIONS")

	// Polling, importer callbacks and the page stream are not rate limited.
	// They are scoped by owner or by the session token issued at launch.
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.CancelSession).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/sessions/{id}/events", h.PostEvent).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/ws", h.PageStream).Methods("GET")
	api.HandleFunc("/templates", h.ListTemplates).Methods("GET")

	r.Use(metricsMiddleware)
	r.Use(corsMiddleware)

	return r
}
