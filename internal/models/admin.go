// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package models

import (
	"strings"
	"time"

	"github.com/tomtom215/tideline/internal/docstore"
)

// AdminAccount is a privileged identity mirrored into the privileged and the
// general collections.
type AdminAccount struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName,omitempty"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	Role          Role      `json:"role"`
	Status        Status    `json:"status"`
	Permissions   []string  `json:"permissions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NormalizeRole canonicalizes a role label from either collection into
// RoleAdmin or RoleSuperAdmin. Case, surrounding space, '-' and ' ' separators
// are ignored. Anything not recognized as super admin, including "user" and
// legacy labels, becomes RoleAdmin.
func NormalizeRole(label string) Role {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "super_admin", "superadmin", "super_administrator", "superuser", "root_admin":
		return RoleSuperAdmin
	default:
		return RoleAdmin
	}
}

// AdminFromDocument converts a privileged-collection document. The role is
// normalized on read.
func AdminFromDocument(doc docstore.Document) AdminAccount {
	f := doc.Fields
	a := AdminAccount{
		ID:            doc.ID,
		Email:         f.String(FieldEmail),
		DisplayName:   f.String(FieldDisplayName),
		FirstName:     f.String(FieldFirstName),
		LastName:      f.String(FieldLastName),
		Phone:         f.String(FieldPhone),
		EmailVerified: f.Bool(FieldEmailVerified),
		Role:          NormalizeRole(f.String(FieldRole)),
		Status:        Status(f.String(FieldStatus)),
		Permissions:   f.Strings(FieldPermissions),
		CreatedAt:     f.Time(FieldCreatedAt),
		UpdatedAt:     f.Time(FieldUpdatedAt),
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Permissions == nil {
		a.Permissions = []string{}
	}
	return a
}
