// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"net/http"

	"github.com/tomtom215/tideline/internal/logging"
	ws "github.com/tomtom215/tideline/internal/websocket"
)

// WebSocket upgrades the connection and attaches it to the hub. The client
// first receives the latest live view snapshot, then every change.
//
// GET /api/v1/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("websocket hub not running")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if err := ws.NewClient(h.hub, conn).Start(r.Context()); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket client not registered")
	}
}
