// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/registrar"
)

// MutationResponse is returned by every privileged account mutation. A
// partial mirror failure is reported with HTTP 200 and outcome
// "partial_failure": the privileged mirror was written, so retrying the
// request is not the right recovery.
type MutationResponse struct {
	Outcome registrar.Outcome `json:"outcome"`
	Account interface{}       `json:"account,omitempty"`
	Partial *PartialFailure   `json:"partial,omitempty"`
}

// PartialFailure describes which mirror is out of sync.
type PartialFailure struct {
	SucceededMirror string `json:"succeededMirror"`
	FailedMirror    string `json:"failedMirror"`
	Message         string `json:"message"`
}

// BulkUpdateRequest is the body of a bulk account update.
type BulkUpdateRequest struct {
	IDs     []string        `json:"ids"`
	Changes docstore.Fields `json:"changes"`
}

// CreateAdmin registers a privileged account.
//
// POST /api/v1/admins
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var in registrar.CreateInput
	if err := decodeJSON(r, w, &in); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	res, err := h.engine.CreateAccount(r.Context(), in)
	if err != nil {
		writeEngineError(rw, r, err)
		return
	}
	writeMutation(rw, http.StatusCreated, res)
}

// GetAdmin returns a privileged account.
//
// GET /api/v1/admins/{id}
func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	admin, err := h.engine.GetAdmin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(rw, r, err)
		return
	}
	rw.Success(admin)
}

// UpdateAdmin changes the given fields of a privileged account.
//
// PATCH /api/v1/admins/{id}
func (h *Handler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var in registrar.UpdateInput
	if err := decodeJSON(r, w, &in); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	h.mutate(rw, r, func(ctx context.Context) (registrar.Result, error) {
		return h.engine.UpdateAccount(ctx, id, in)
	})
}

// DeleteAdmin removes a privileged account from both mirrors.
//
// DELETE /api/v1/admins/{id}
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(NewResponseWriter(w, r), r, func(ctx context.Context) (registrar.Result, error) {
		return h.engine.DeleteAccount(ctx, id)
	})
}

// PromoteAdmin grants privileged status to a general account.
//
// POST /api/v1/admins/{id}/promote
func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(NewResponseWriter(w, r), r, func(ctx context.Context) (registrar.Result, error) {
		return h.engine.PromoteToPrivileged(ctx, id)
	})
}

// ToggleAdminStatus flips a privileged account between active and inactive.
//
// POST /api/v1/admins/{id}/toggle-status
func (h *Handler) ToggleAdminStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(NewResponseWriter(w, r), r, func(ctx context.Context) (registrar.Result, error) {
		return h.engine.ToggleAccountStatus(ctx, id)
	})
}

// BulkUpdate merges the same changes into many general accounts. Per-item
// failures are reported in the result, not as an HTTP error.
//
// POST /api/v1/accounts/bulk
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req BulkUpdateRequest
	if err := decodeJSON(r, w, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	res, err := h.engine.BulkUpdate(r.Context(), req.IDs, req.Changes)
	if err != nil {
		writeEngineError(rw, r, err)
		return
	}
	rw.Success(res)
}

func (h *Handler) mutate(rw *ResponseWriter, r *http.Request, op func(context.Context) (registrar.Result, error)) {
	res, err := op(logging.ContextWithAccountID(r.Context(), chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(rw, r, err)
		return
	}
	writeMutation(rw, http.StatusOK, res)
}

// writeMutation writes status with the mutation result. A partial mirror
// failure keeps the status and adds a PARTIAL_MIRROR_FAILURE warning.
func writeMutation(rw *ResponseWriter, status int, res registrar.Result) {
	body := mutationResponse(res)
	if body.Partial != nil {
		rw.SuccessWithWarning(status, body, ErrCodePartialMirror, body.Partial.Message)
		return
	}
	if status == http.StatusCreated {
		rw.Created(body)
		return
	}
	rw.Success(body)
}

func mutationResponse(res registrar.Result) MutationResponse {
	out := MutationResponse{Outcome: res.Outcome}
	if res.Account.ID != "" {
		out.Account = res.Account
	}
	if p := res.Partial; p != nil {
		out.Partial = &PartialFailure{
			SucceededMirror: string(p.SucceededMirror),
			FailedMirror:    string(p.FailedMirror),
			Message:         p.Error(),
		}
	}
	return out
}
