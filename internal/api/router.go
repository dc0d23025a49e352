// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/herpatlas/herpatlas/internal/config"
	"github.com/herpatlas/herpatlas/internal/middleware"
)

// Router assembles the HTTP surface.
type Router struct {
	handlers *Handlers
	jwt      *middleware.JWTManager
	cfg      *config.ServerConfig
}

// NewRouter wires the router.
func NewRouter(handlers *Handlers, jwt *middleware.JWTManager, cfg *config.ServerConfig) *Router {
	return &Router{handlers: handlers, jwt: jwt, cfg: cfg}
}

// Setup builds the route tree. Reads are open; writes require a bearer
// token and carry a per-IP rate limit sized for field-survey submission
// bursts.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", rt.handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Metrics)

		r.Route("/health", func(r chi.Router) {
			r.Get("/", rt.handlers.Health)
			r.Get("/live", rt.handlers.HealthLive)
			r.Get("/ready", rt.handlers.HealthReady)
		})

		r.Get("/records", rt.handlers.ListRecords)
		r.Get("/records/{user_id}", rt.handlers.ListRecords)

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)
			if rt.cfg.RateLimitWrite > 0 {
				r.Use(httprate.Limit(rt.cfg.RateLimitWrite, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP)))
			}
			r.Post("/records", rt.handlers.CreateRecords)
		})
	})

	return r
}
