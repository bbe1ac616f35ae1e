// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler is a slog.Handler writing through zerolog. The supervisor tree
// (sutureslog) only speaks slog; this keeps its restart and backoff events in
// the same stream as everything else.
//
// Attributes added with WithAttrs are folded into a child zerolog logger
// once, so Handle only encodes the record's own attributes.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string // "group1.group2." for the open groups
}

// NewSlogHandler wraps the current global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerologLevel(level) >= zerolog.GlobalLevel()
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	ev := h.logger.WithLevel(slogToZerologLevel(record.Level))
	record.Attrs(func(a slog.Attr) bool {
		ev = appendAttr(ev, h.prefix, a)
		return true
	})
	ev.Msg(record.Message)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	lc := h.logger.With()
	for _, a := range attrs {
		lc = contextAttr(lc, h.prefix, a)
	}
	return &SlogHandler{logger: lc.Logger(), prefix: h.prefix}
}

// WithGroup implements slog.Handler.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// attrValue flattens an attribute into key/value pairs, expanding groups
// into dotted keys.
func attrValue(prefix string, a slog.Attr, emit func(key string, v slog.Value)) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			attrValue(inner, ga, emit)
		}
		return
	}
	emit(prefix+a.Key, v)
}

func appendAttr(ev *zerolog.Event, prefix string, a slog.Attr) *zerolog.Event {
	attrValue(prefix, a, func(key string, v slog.Value) {
		switch v.Kind() {
		case slog.KindString:
			ev = ev.Str(key, v.String())
		case slog.KindInt64:
			ev = ev.Int64(key, v.Int64())
		case slog.KindUint64:
			ev = ev.Uint64(key, v.Uint64())
		case slog.KindFloat64:
			ev = ev.Float64(key, v.Float64())
		case slog.KindBool:
			ev = ev.Bool(key, v.Bool())
		case slog.KindDuration:
			ev = ev.Dur(key, v.Duration())
		case slog.KindTime:
			ev = ev.Time(key, v.Time())
		default:
			if err, ok := v.Any().(error); ok {
				ev = ev.AnErr(key, err)
				return
			}
			ev = ev.Interface(key, v.Any())
		}
	})
	return ev
}

func contextAttr(lc zerolog.Context, prefix string, a slog.Attr) zerolog.Context {
	attrValue(prefix, a, func(key string, v slog.Value) {
		switch v.Kind() {
		case slog.KindString:
			lc = lc.Str(key, v.String())
		case slog.KindBool:
			lc = lc.Bool(key, v.Bool())
		case slog.KindDuration:
			lc = lc.Dur(key, v.Duration())
		default:
			lc = lc.Interface(key, v.Any())
		}
	})
	return lc
}

func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// NewSlogLogger returns an *slog.Logger for the supervisor tree, tagged with
// component=supervisor.
func NewSlogLogger() *slog.Logger {
	return slog.New(&SlogHandler{logger: WithComponent("supervisor")})
}
