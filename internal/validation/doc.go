// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

// Package validation provides struct validation using go-playground/validator v10.
//
// GetValidator returns a thread-safe singleton that reports fields by their
// JSON names and registers two domain tags:
//
//	account_status  one of active, inactive, suspended, pending
//	account_role    one of user, admin, super_admin
//
// ValidateStruct returns nil or a *RequestValidationError whose ToModelError
// converts the first failure into a *models.ValidationError:
//
//	if verr := validation.ValidateStruct(&in); verr != nil {
//	    return verr.ToModelError()
//	}
package validation
