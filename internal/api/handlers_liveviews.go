// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// LiveView returns the live view of one account.
//
// GET /api/v1/liveviews/{id}
func (h *Handler) LiveView(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	view, err := h.engine.GetLiveView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(rw, r, err)
		return
	}
	rw.Success(view)
}
