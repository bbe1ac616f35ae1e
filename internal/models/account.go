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

// Role is an account role.
type Role string

// Account roles. Privileged accounts only ever carry RoleAdmin or RoleSuperAdmin.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether r belongs in the privileged mirror.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Status is an account lifecycle status.
type Status string

// Account statuses.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// Document field names shared by account records in both mirrors.
const (
	FieldEmail           = "email"
	FieldDisplayName     = "displayName"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldPhone           = "phone"
	FieldAddress         = "address"
	FieldMeterID         = "meterId"
	FieldEmailVerified   = "emailVerified"
	FieldPhoneVerified   = "phoneVerified"
	FieldRole            = "role"
	FieldStatus          = "status"
	FieldPermissions     = "permissions"
	FieldProfileImageURL = "profileImageUrl"
	FieldPhotoURL        = "photoURL"
	FieldDeviceLinked    = "deviceLinked"
	FieldCreatedAt       = "createdAt"
	FieldUpdatedAt       = "updatedAt"
)

// AccountProfile is an identity record in the general accounts collection.
type AccountProfile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"displayName,omitempty"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	MeterID         string    `json:"meterId,omitempty"`
	EmailVerified   bool      `json:"emailVerified"`
	PhoneVerified   bool      `json:"phoneVerified"`
	Role            Role      `json:"role"`
	Status          Status    `json:"status"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	PhotoURL        string    `json:"photoURL,omitempty"`
	DeviceLinked    bool      `json:"deviceLinked"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Name returns the best available human-readable name: display name, then
// first and last name, then email.
func (a AccountProfile) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if full := strings.TrimSpace(a.FirstName + " " + a.LastName); full != "" {
		return full
	}
	return a.Email
}

// AccountFromDocument converts a stored document. Missing fields take their
// zero values; an empty status reads as pending and an empty role as user.
func AccountFromDocument(doc docstore.Document) AccountProfile {
	f := doc.Fields
	a := AccountProfile{
		ID:              doc.ID,
		Email:           f.String(FieldEmail),
		DisplayName:     f.String(FieldDisplayName),
		FirstName:       f.String(FieldFirstName),
		LastName:        f.String(FieldLastName),
		Phone:           f.String(FieldPhone),
		Address:         f.String(FieldAddress),
		MeterID:         f.String(FieldMeterID),
		EmailVerified:   f.Bool(FieldEmailVerified),
		PhoneVerified:   f.Bool(FieldPhoneVerified),
		Role:            Role(f.String(FieldRole)),
		Status:          Status(f.String(FieldStatus)),
		ProfileImageURL: f.String(FieldProfileImageURL),
		PhotoURL:        f.String(FieldPhotoURL),
		DeviceLinked:    f.Bool(FieldDeviceLinked),
		CreatedAt:       f.Time(FieldCreatedAt),
		UpdatedAt:       f.Time(FieldUpdatedAt),
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = doc.CreateTime
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = doc.UpdateTime
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	return a
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
