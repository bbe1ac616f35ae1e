// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object from the request body. Unknown fields
// are rejected.
func decodeJSON(r *http.Request, w http.ResponseWriter, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return errEmptyBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeEngineError maps engine errors onto HTTP responses:
// ValidationError is 400, ErrNotFound is 404 and everything else is 500.
func writeEngineError(rw *ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), map[string]string{
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.Is(err, models.ErrNotFound):
		rw.NotFound(err.Error())
	default:
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("component", "api").
			Str("path", sanitizeLogValue(r.URL.Path)).
			Msg("Request failed")
		rw.InternalError("internal error")
	}
}

// sanitizeLogValue escapes control characters to prevent log injection.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
