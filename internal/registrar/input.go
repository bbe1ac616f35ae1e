// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package registrar

import "github.com/tomtom215/tideline/internal/models"

// CreateInput describes a new privileged account.
type CreateInput struct {
	Email         string        `json:"email" validate:"required,email,max=254"`
	DisplayName   string        `json:"displayName" validate:"omitempty,max=200"`
	FirstName     string        `json:"firstName" validate:"omitempty,max=100"`
	LastName      string        `json:"lastName" validate:"omitempty,max=100"`
	Phone         string        `json:"phone" validate:"omitempty,e164"`
	Role          string        `json:"role" validate:"omitempty,max=64"`
	Status        models.Status `json:"status" validate:"omitempty,account_status"`
	EmailVerified bool          `json:"emailVerified"`
}

// UpdateInput holds the fields to change. Nil fields are left untouched.
type UpdateInput struct {
	Email         *string        `json:"email,omitempty" validate:"omitempty,email,max=254"`
	DisplayName   *string        `json:"displayName,omitempty" validate:"omitempty,max=200"`
	FirstName     *string        `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName      *string        `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Phone         *string        `json:"phone,omitempty" validate:"omitempty,e164"`
	Role          *string        `json:"role,omitempty" validate:"omitempty,max=64"`
	Status        *models.Status `json:"status,omitempty" validate:"omitempty,account_status"`
	EmailVerified *bool          `json:"emailVerified,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UpdateInput) IsEmpty() bool {
	return u.Email == nil && u.DisplayName == nil && u.FirstName == nil &&
		u.LastName == nil && u.Phone == nil && u.Role == nil &&
		u.Status == nil && u.EmailVerified == nil
}
