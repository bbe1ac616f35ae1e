// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tideline/internal/middleware"
)

// Router binds the handler to chi routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil config uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is handled

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit(ClassHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit(ClassRead))
			r.Get("/liveviews/{id}", router.handler.LiveView)
			r.Get("/presence/online", router.handler.Online)
			r.Get("/admins/{id}", router.handler.GetAdmin)
		})

		r.With(router.chiMiddleware.RateLimit(ClassHeartbeat)).
			Post("/presence/heartbeat", router.handler.Heartbeat)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit(ClassWrite))
			r.Post("/admins", router.handler.CreateAdmin)
			r.Patch("/admins/{id}", router.handler.UpdateAdmin)
			r.Delete("/admins/{id}", router.handler.DeleteAdmin)
			r.Post("/admins/{id}/promote", router.handler.PromoteAdmin)
			r.Post("/admins/{id}/toggle-status", router.handler.ToggleAdminStatus)
			r.Post("/accounts/bulk", router.handler.BulkUpdate)
		})

		r.With(router.chiMiddleware.RateLimit(ClassWebSocket)).
			Get("/ws", router.handler.WebSocket)
	})

	return r
}
