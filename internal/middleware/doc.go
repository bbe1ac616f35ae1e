// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package middleware provides chi-compatible HTTP middleware for the API
surface.

Key Components:

  - RequestID: reuses or generates X-Request-ID and seeds the logging
    context with request and correlation IDs
  - PrometheusMetrics: request count and latency labeled by chi route
    pattern and status code

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper implements http.Hijacker, so websocket upgrades work
behind it.
*/
package middleware
