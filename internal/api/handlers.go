// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tideline/internal/bulk"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
	"github.com/tomtom215/tideline/internal/registrar"
	ws "github.com/tomtom215/tideline/internal/websocket"
)

// Engine is the part of the engine the HTTP surface calls.
type Engine interface {
	GetLiveView(ctx context.Context, id string) (models.LiveView, error)
	Heartbeat(ctx context.Context, id string, meta models.DeviceMetadata) error
	ListOnline(threshold time.Duration) []models.PresenceRecord
	ListStrictlyOnline() []models.PresenceRecord
	ListRecentlyActive() []models.PresenceRecord
	CreateAccount(ctx context.Context, in registrar.CreateInput) (registrar.Result, error)
	UpdateAccount(ctx context.Context, id string, in registrar.UpdateInput) (registrar.Result, error)
	DeleteAccount(ctx context.Context, id string) (registrar.Result, error)
	PromoteToPrivileged(ctx context.Context, id string) (registrar.Result, error)
	ToggleAccountStatus(ctx context.Context, id string) (registrar.Result, error)
	GetAdmin(ctx context.Context, id string) (models.AdminAccount, error)
	BulkUpdate(ctx context.Context, ids []string, changes docstore.Fields) (bulk.Result, error)
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_liveviews.go: live view reads
//   - handlers_presence.go: heartbeat and online lists
//   - handlers_admins.go: privileged account mutations and bulk updates
//   - handlers_health.go: liveness and readiness
//   - handlers_websocket.go: websocket upgrade
type Handler struct {
	engine      Engine
	hub         *ws.Hub
	corsOrigins []string
	ready       func() bool
	startTime   time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithReadiness sets the readiness check of /health/ready.
func WithReadiness(ready func() bool) HandlerOption {
	return func(h *Handler) { h.ready = ready }
}

// NewHandler creates the API handler. hub may be nil, in which case the
// websocket endpoint answers 503. corsOrigins also governs websocket origin
// checks.
func NewHandler(engine Engine, hub *ws.Hub, corsOrigins []string, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:      engine,
		hub:         hub,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts only origins allowed by the CORS list. Browser
// websockets always send Origin, so a missing header is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
