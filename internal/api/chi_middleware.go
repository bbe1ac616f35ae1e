// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouteClass groups routes that share a rate limit.
type RouteClass string

const (
	// ClassRead covers live view, presence and admin reads. Its limit is
	// ChiMiddlewareConfig.RateLimitRequests per RateLimitWindow.
	ClassRead RouteClass = "read"

	// ClassHealth covers liveness and readiness probes.
	ClassHealth RouteClass = "health"

	// ClassHeartbeat covers presence heartbeats.
	ClassHeartbeat RouteClass = "heartbeat"

	// ClassWrite covers privileged account mutations and bulk updates.
	ClassWrite RouteClass = "write"

	// ClassWebSocket covers websocket upgrades.
	ClassWebSocket RouteClass = "websocket"
)

// RateLimitConfig is a request budget per client per window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultClassLimits returns the budgets of the fixed route classes. A client
// heartbeating every few seconds stays well under the heartbeat budget.
func DefaultClassLimits() map[RouteClass]RateLimitConfig {
	return map[RouteClass]RateLimitConfig{
		ClassHealth:    {Requests: 1000, Window: time.Minute},
		ClassHeartbeat: {Requests: 120, Window: time.Minute},
		ClassWrite:     {Requests: 30, Window: time.Minute},
		ClassWebSocket: {Requests: 30, Window: time.Minute},
	}
}

// ChiMiddlewareConfig configures CORS and rate limiting.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// RateLimitRequests of 0 disables rate limiting for every class.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitKeyFunc  httprate.KeyFunc

	// ClassLimits overrides DefaultClassLimits per class.
	ClassLimits map[RouteClass]RateLimitConfig
}

// DefaultChiMiddlewareConfig returns the default configuration. No CORS
// origin is allowed until one is configured.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddleware builds the CORS handler and the per-class limiters.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
	limits map[RouteClass]RateLimitConfig
}

// NewChiMiddleware builds middleware from config, or from the defaults when
// config is nil.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	limits := DefaultClassLimits()
	for class, l := range config.ClassLimits {
		limits[class] = l
	}
	limits[ClassRead] = RateLimitConfig{Requests: config.RateLimitRequests, Window: config.RateLimitWindow}

	return &ChiMiddleware{
		config: config,
		limits: limits,
		cors: cors.Handler(cors.Options{
			AllowedOrigins:   config.CORSAllowedOrigins,
			AllowedMethods:   config.CORSAllowedMethods,
			AllowedHeaders:   config.CORSAllowedHeaders,
			ExposedHeaders:   config.CORSExposedHeaders,
			AllowCredentials: config.CORSAllowCredentials,
			MaxAge:           config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the go-chi/httprate limiter of class, keyed by client IP
// unless RateLimitKeyFunc is set. Each call returns an independent limiter.
func (m *ChiMiddleware) RateLimit(class RouteClass) func(http.Handler) http.Handler {
	l, ok := m.limits[class]
	if !ok {
		l = m.limits[ClassRead]
	}
	if m.config.RateLimitRequests <= 0 || l.Requests <= 0 || l.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	keyFunc := m.config.RateLimitKeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	return httprate.Limit(l.Requests, l.Window, httprate.WithKeyFuncs(keyFunc))
}

// APISecurityHeaders sets the headers every API response carries. HSTS is
// only sent over HTTPS, directly or behind a TLS-terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
