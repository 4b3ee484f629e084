// Package server assembles the HTTP router.
package server

import (
	"log/slog"
	"net/http"

	"github.com/Stewz00/go-auth-service/internal/handler"
	"github.com/Stewz00/go-auth-service/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AuthHandler *handler.AuthHandler
	Logger      *slog.Logger
	// Gatherer backs /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	// RateLimit turns on the per-IP limiters.
	RateLimit bool
}

// NewRouter creates the chi router with the global middleware, health and
// metrics endpoints, and the auth routes under /api/auth.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.RateLimit {
		r.Use(middleware.RateLimiter())
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Auth routes with strict rate limiting
	r.Route("/api/auth", func(r chi.Router) {
		if cfg.RateLimit {
			r.Use(middleware.StrictRateLimiter())
		}
		r.Mount("/", cfg.AuthHandler.Routes())
	})

	return r
}
