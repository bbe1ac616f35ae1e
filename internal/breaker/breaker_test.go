// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package breaker

import (
	"errors"
	"io"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tomtom215/tideline/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New(Config{Name: "test-open", FailureThreshold: 2, Timeout: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		if !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	if !IsRejected(err) {
		t.Errorf("expected rejection while open, got %v", err)
	}
}

func TestIsRejected(t *testing.T) {
	if IsRejected(errors.New("other")) {
		t.Error("plain error is not a rejection")
	}
	if !IsRejected(gobreaker.ErrTooManyRequests) {
		t.Error("ErrTooManyRequests is a rejection")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("presence-mirror")
	if cfg.Name != "presence-mirror" || cfg.FailureThreshold == 0 || cfg.Timeout <= 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
