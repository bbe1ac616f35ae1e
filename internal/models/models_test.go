// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/tideline/internal/docstore"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"super_admin", RoleSuperAdmin},
		{"SuperAdmin", RoleSuperAdmin},
		{"super-admin", RoleSuperAdmin},
		{"  Super Admin ", RoleSuperAdmin},
		{"admin", RoleAdmin},
		{"Administrator", RoleAdmin},
		{"user", RoleAdmin},
		{"", RoleAdmin},
		{"owner", RoleAdmin},
	}
	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAccountFromSparseDocument(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := AccountFromDocument(docstore.Document{ID: "u1", Fields: docstore.Fields{}, CreateTime: created})
	if a.ID != "u1" || a.Status != StatusPending || a.Role != RoleUser {
		t.Errorf("unexpected defaults: %+v", a)
	}
	if !a.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want document create time", a.CreatedAt)
	}
}

func TestAccountName(t *testing.T) {
	tests := []struct {
		a    AccountProfile
		want string
	}{
		{AccountProfile{DisplayName: "Ada", FirstName: "x"}, "Ada"},
		{AccountProfile{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{AccountProfile{Email: "ada@example.com"}, "ada@example.com"},
	}
	for _, tt := range tests {
		if got := tt.a.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}

func TestValveStateFor(t *testing.T) {
	if ValveStateFor(0.1) != ValveOpen {
		t.Error("positive flow should be open")
	}
	if ValveStateFor(0) != ValveClosed || ValveStateFor(-1) != ValveClosed {
		t.Error("zero or negative flow should be closed")
	}
}

func TestPresenceOnlineAtBoundary(t *testing.T) {
	last := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := PresenceRecord{LastHeartbeat: last}
	threshold := 5 * time.Minute

	if !p.OnlineAt(last.Add(threshold-time.Nanosecond), threshold) {
		t.Error("expected online just before threshold")
	}
	if !p.OnlineAt(last.Add(threshold), threshold) {
		t.Error("expected online exactly at threshold")
	}
	if p.OnlineAt(last.Add(threshold+time.Nanosecond), threshold) {
		t.Error("expected offline just after threshold")
	}
	if (PresenceRecord{}).OnlineAt(last, threshold) {
		t.Error("record without heartbeat must be offline")
	}
}

func TestLiveViewsFind(t *testing.T) {
	views := LiveViews{
		{AccountProfile: AccountProfile{ID: "a"}, TotalUsage: 1},
		{AccountProfile: AccountProfile{ID: "b"}, TotalUsage: 2},
	}
	v, ok := views.Find("b")
	if !ok || v.TotalUsage != 2 {
		t.Errorf("Find(b) = %+v, %v", v, ok)
	}
	if _, ok := views.Find("z"); ok {
		t.Error("Find(z) should miss")
	}
}

func TestPartialMirrorFailureUnwrap(t *testing.T) {
	cause := errors.New("write refused")
	var err error = &PartialMirrorFailure{
		Operation:       "create",
		AccountID:       "a1",
		SucceededMirror: MirrorPrivileged,
		FailedMirror:    MirrorGeneral,
		Err:             cause,
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	var pmf *PartialMirrorFailure
	if !errors.As(fmt.Errorf("wrapped: %w", err), &pmf) || pmf.FailedMirror != MirrorGeneral {
		t.Error("errors.As should find PartialMirrorFailure")
	}
}

func TestErrNotFoundMatchesStoreSentinel(t *testing.T) {
	err := fmt.Errorf("get users/u1: %w", docstore.ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("models.ErrNotFound should match docstore.ErrNotFound")
	}
}

func TestPresenceFromDocument(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := docstore.Document{ID: "admin1", Fields: docstore.Fields{
		FieldLastHeartbeat: ts.Format(time.RFC3339Nano),
		FieldOnline:        true,
		FieldMetadata:      map[string]interface{}{"device": "laptop"},
		FieldInstance:      "node-a",
	}}
	p := PresenceFromDocument(doc)
	if p.IdentityID != "admin1" || !p.LastHeartbeat.Equal(ts) || p.Metadata.Device != "laptop" || p.Instance != "node-a" {
		t.Errorf("unexpected record: %+v", p)
	}
}
