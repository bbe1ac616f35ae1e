// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package models

import (
	"time"

	"github.com/tomtom215/tideline/internal/docstore"
)

// Alert document field names.
const (
	FieldAccountID = "accountId"
	FieldRead      = "read"
)

// Alert is a per-account event record. The engine only reads alerts.
type Alert struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlertFromDocument converts a stored alert.
func AlertFromDocument(doc docstore.Document) Alert {
	f := doc.Fields
	return Alert{
		ID:        doc.ID,
		AccountID: f.String(FieldAccountID),
		Type:      f.String("type"),
		Severity:  f.String("severity"),
		Message:   f.String("message"),
		Read:      f.Bool(FieldRead),
		Status:    f.String(FieldStatus),
		CreatedAt: f.Time(FieldCreatedAt),
	}
}
