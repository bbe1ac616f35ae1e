// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/tideline/internal/models"
)

type testInput struct {
	Email  string        `json:"email" validate:"required,email"`
	Name   string        `json:"name" validate:"omitempty,min=2,max=5"`
	Count  int           `json:"count" validate:"gte=0,lte=10"`
	Status models.Status `json:"status" validate:"omitempty,account_status"`
	Role   string        `json:"role" validate:"omitempty,account_role"`
	Hidden string        `json:"-" validate:"omitempty,oneof=a b"`
	Owner  string        `json:"owner" validate:"omitempty,document_id"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   testInput
		field   string
		message string
	}{
		{"valid", testInput{Email: "a@example.com", Status: models.StatusActive, Role: "admin"}, "", ""},
		{"missing email", testInput{}, "email", "email is required"},
		{"bad email", testInput{Email: "nope"}, "email", "email must be a valid email address"},
		{"short name", testInput{Email: "a@example.com", Name: "x"}, "name", "name must be at least 2 characters"},
		{"long name", testInput{Email: "a@example.com", Name: "abcdef"}, "name", "name must be at most 5 characters"},
		{"count range", testInput{Email: "a@example.com", Count: 11}, "count", "count must be less than or equal to 10"},
		{"bad status", testInput{Email: "a@example.com", Status: "archived"}, "status", "status must be one of: active, inactive, suspended, pending"},
		{"bad role", testInput{Email: "a@example.com", Role: "owner"}, "role", "role must be one of: user, admin, super_admin"},
		{"id with slash", testInput{Email: "a@example.com", Owner: "users/u1"}, "owner", "owner must be a non-blank ID without '/'"},
		{"blank id", testInput{Email: "a@example.com", Owner: "   "}, "owner", "owner must be a non-blank ID without '/'"},
		{"untagged json name", testInput{Email: "a@example.com", Hidden: "c"}, "Hidden", "Hidden must be one of: a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.field == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			first := verr.Errors()[0]
			if first.Field() != tt.field {
				t.Errorf("Field() = %s, want %s", first.Field(), tt.field)
			}
			if first.Error() != tt.message {
				t.Errorf("message = %q, want %q", first.Error(), tt.message)
			}
		})
	}
}

func TestRequestValidationError_Combined(t *testing.T) {
	verr := ValidateStruct(&testInput{Email: "nope", Count: -1})
	if verr == nil || len(verr.Errors()) != 2 {
		t.Fatalf("expected two errors, got %v", verr)
	}
	if !strings.Contains(verr.Error(), "; ") {
		t.Errorf("combined message = %q", verr.Error())
	}

	model := verr.ToModelError()
	if model.Field != "email" || model.Reason == "" {
		t.Errorf("ToModelError() = %+v", model)
	}
}

func TestRequestValidationError_Empty(t *testing.T) {
	verr := &RequestValidationError{}
	if verr.Error() != "validation failed" {
		t.Errorf("Error() = %q", verr.Error())
	}
	if verr.ToModelError().Field != "unknown" {
		t.Error("empty error should map to unknown field")
	}
}
