// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tideline/internal/logging"
)

// APIResponse is the envelope of every JSON response.
//
// Warning is set on successful responses that still need attention, such as
// a mutation whose general mirror was not written.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Warning *APIError   `json:"warning,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError is a machine-readable code plus a message for humans.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// APIMeta is stamped on every response.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Count      *int      `json:"count,omitempty"`
}

// Error and warning codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodePartialMirror      = "PARTIAL_MIRROR_FAILURE"
)

// ResponseWriter writes APIResponse envelopes for one request.
type ResponseWriter struct {
	w       http.ResponseWriter
	r       *http.Request
	started time.Time
}

// NewResponseWriter starts timing the request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, started: time.Now()}
}

// Success writes 200 with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.send(http.StatusOK, APIResponse{Success: true, Data: data})
}

// List writes 200 with data and its element count in meta.
func (rw *ResponseWriter) List(data interface{}, count int) {
	rw.sendCounted(http.StatusOK, APIResponse{Success: true, Data: data}, &count)
}

// Created writes 201 with data.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.send(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// Accepted writes 202 with data.
func (rw *ResponseWriter) Accepted(data interface{}) {
	rw.send(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// SuccessWithWarning writes status with data and a warning.
func (rw *ResponseWriter) SuccessWithWarning(status int, data interface{}, code, message string) {
	rw.send(status, APIResponse{
		Success: true,
		Data:    data,
		Warning: &APIError{Code: code, Message: message},
	})
}

// ErrorWithDetails writes a failed response.
func (rw *ResponseWriter) ErrorWithDetails(status int, code, message string, details interface{}) {
	rw.send(status, APIResponse{Error: &APIError{Code: code, Message: message, Details: details}})
}

// BadRequest writes 400.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, message, nil)
}

// NotFound writes 404.
func (rw *ResponseWriter) NotFound(message string) {
	rw.ErrorWithDetails(http.StatusNotFound, ErrCodeNotFound, message, nil)
}

// InternalError writes 500. The message must not leak store details.
func (rw *ResponseWriter) InternalError(message string) {
	rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeInternalError, message, nil)
}

// ServiceUnavailable writes 503.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message, nil)
}

func (rw *ResponseWriter) send(status int, resp APIResponse) {
	rw.sendCounted(status, resp, nil)
}

func (rw *ResponseWriter) sendCounted(status int, resp APIResponse, count *int) {
	resp.Meta = &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.started).Milliseconds(),
		Count:      count,
	}

	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Str("component", "api").Msg("Failed to encode JSON response")
	}
}
