// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package api is the HTTP surface over the engine, routed with chi.

Routes:

	GET    /metrics                          Prometheus exposition
	GET    /api/v1/health/live               liveness probe
	GET    /api/v1/health/ready              readiness probe
	GET    /api/v1/liveviews/{id}            one live view
	POST   /api/v1/presence/heartbeat        record a heartbeat
	GET    /api/v1/presence/online?within=   online identities
	POST   /api/v1/admins                    create a privileged account
	GET    /api/v1/admins/{id}               read a privileged account
	PATCH  /api/v1/admins/{id}               update a privileged account
	DELETE /api/v1/admins/{id}               delete a privileged account
	POST   /api/v1/admins/{id}/promote       promote a general account
	POST   /api/v1/admins/{id}/toggle-status flip active and inactive
	POST   /api/v1/accounts/bulk             bulk update general accounts
	GET    /api/v1/ws                        websocket feed

Every JSON response uses the APIResponse envelope. Engine errors map to
status codes: validation errors are 400, missing entities 404, anything
else 500. Partial mirror failures are not errors at the HTTP level; the
response carries outcome "partial_failure", the mirror details and a
PARTIAL_MIRROR_FAILURE warning.

Middleware: request IDs, chi RealIP and Recoverer, go-chi/cors, go-chi/httprate
limits per route group, security headers and Prometheus request metrics.
The API does not authenticate callers.
*/
package api
