// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"net"
	"net/http"
	"time"

	"github.com/tomtom215/tideline/internal/models"
	"github.com/tomtom215/tideline/internal/validation"
)

// HeartbeatRequest is the body of a presence heartbeat. Identity comes from
// the body because the API does not authenticate callers.
type HeartbeatRequest struct {
	IdentityID string                `json:"identityId" validate:"required,document_id,max=128"`
	Metadata   models.DeviceMetadata `json:"metadata"`
}

// Heartbeat records that an identity is alive. The user agent and client IP
// are filled from the request when the body omits them.
//
// POST /api/v1/presence/heartbeat
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req HeartbeatRequest
	if err := decodeJSON(r, w, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeEngineError(rw, r, verr.ToModelError())
		return
	}

	meta := req.Metadata
	if meta.UserAgent == "" {
		meta.UserAgent = r.UserAgent()
	}
	if meta.IPAddress == "" {
		meta.IPAddress = clientIP(r)
	}

	if err := h.engine.Heartbeat(r.Context(), req.IdentityID, meta); err != nil {
		writeEngineError(rw, r, err)
		return
	}
	rw.Accepted(map[string]string{"identityId": req.IdentityID})
}

// Online lists identities seen recently.
//
// GET /api/v1/presence/online[?within=recent|<duration>]
//
// Without within, the online threshold applies. "recent" selects the wider
// recent threshold; records older than the online threshold then carry
// online=false.
func (h *Handler) Online(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var records []models.PresenceRecord
	switch within := r.URL.Query().Get("within"); within {
	case "":
		records = h.engine.ListStrictlyOnline()
	case "recent":
		records = h.engine.ListRecentlyActive()
	default:
		d, err := time.ParseDuration(within)
		if err != nil || d <= 0 {
			rw.BadRequest("within must be \"recent\" or a positive duration such as 10m")
			return
		}
		records = h.engine.ListOnline(d)
	}

	if records == nil {
		records = []models.PresenceRecord{}
	}
	rw.List(records, len(records))
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP middleware
// has already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
