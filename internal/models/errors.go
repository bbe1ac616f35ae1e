// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package models

import (
	"fmt"

	"github.com/tomtom215/tideline/internal/docstore"
)

// ErrNotFound reports that an entity is absent at the identity level.
// It is the document store's sentinel, so errors.Is matches either name.
var ErrNotFound = docstore.ErrNotFound

// ValidationError rejects caller input before any write is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Mirror names one of the two account collections.
type Mirror string

// Account mirrors, in write order.
const (
	MirrorPrivileged Mirror = "privileged"
	MirrorGeneral    Mirror = "general"
)

// PartialMirrorFailure reports a dual-collection write that succeeded on one
// mirror and failed on the other. Nothing is rolled back; the record carries
// enough detail for an operator to reconcile.
type PartialMirrorFailure struct {
	Operation       string
	AccountID       string
	SucceededMirror Mirror
	FailedMirror    Mirror
	Err             error
}

func (e *PartialMirrorFailure) Error() string {
	return fmt.Sprintf("%s %s: partial mirror failure: %s written, %s failed: %v",
		e.Operation, e.AccountID, e.SucceededMirror, e.FailedMirror, e.Err)
}

func (e *PartialMirrorFailure) Unwrap() error {
	return e.Err
}
