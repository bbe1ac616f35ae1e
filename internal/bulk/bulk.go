// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

// Package bulk applies one set of field changes to many accounts.
//
// BulkUpdate is not atomic. Every id is attempted; failures are collected per
// id and never abort the call.
package bulk

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// ItemError is the failure of a single id.
type ItemError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Result summarizes a bulk update.
type Result struct {
	UpdatedCount int         `json:"updatedCount"`
	UpdatedIDs   []string    `json:"updatedIds"`
	Errors       []ItemError `json:"errors"`
}

// registrarFields are written only through the registrar, which normalizes
// them and keeps both account mirrors in step.
var registrarFields = map[string]struct{}{
	models.FieldRole:        {},
	models.FieldEmail:       {},
	models.FieldPermissions: {},
	models.FieldCreatedAt:   {},
	models.FieldUpdatedAt:   {},
}

// checkChanges rejects an empty change set and any registrar-owned field.
func checkChanges(changes docstore.Fields) *models.ValidationError {
	if len(changes) == 0 {
		return &models.ValidationError{Field: "changes", Reason: "no fields to update"}
	}
	var owned []string
	for key := range changes {
		if _, ok := registrarFields[key]; ok {
			owned = append(owned, key)
		}
	}
	if len(owned) == 0 {
		return nil
	}
	sort.Strings(owned)
	return &models.ValidationError{
		Field:  owned[0],
		Reason: "cannot be changed in bulk; use the account endpoints",
	}
}

// Executor runs bulk updates against one collection.
type Executor struct {
	store      docstore.Store
	collection string
}

// New creates an executor for collection.
func New(store docstore.Store, collection string) *Executor {
	return &Executor{store: store, collection: collection}
}

// BulkUpdate merges changes into every id. Existing ids are written in one
// batch; if that batch is rejected as a whole, each id is retried on its own
// so one bad item cannot fail the others. An empty change set, or one that
// touches role, email, permissions or timestamps, is a ValidationError and
// nothing is written.
func (e *Executor) BulkUpdate(ctx context.Context, ids []string, changes docstore.Fields) (Result, error) {
	if verr := checkChanges(changes); verr != nil {
		return Result{}, verr
	}
	start := time.Now()

	res := Result{UpdatedIDs: []string{}, Errors: []ItemError{}}
	fields := changes.Clone()
	fields[models.FieldUpdatedAt] = docstore.ServerTimestamp

	seen := make(map[string]struct{}, len(ids))
	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if id == "" {
			res.Errors = append(res.Errors, ItemError{ID: id, Message: "id is required"})
			continue
		}
		if _, err := e.store.Get(ctx, e.collection, id); err != nil {
			res.Errors = append(res.Errors, itemError(id, err))
			continue
		}
		pending = append(pending, id)
	}

	if len(pending) > 0 {
		batch := e.store.Batch()
		for _, id := range pending {
			batch = batch.Update(e.collection, id, fields)
		}
		if err := batch.Commit(ctx); err == nil {
			res.UpdatedIDs = append(res.UpdatedIDs, pending...)
		} else {
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("component", "bulk").
				Int("items", len(pending)).
				Msg("Batched write rejected, retrying items individually")
			for _, id := range pending {
				if err := e.store.Batch().Update(e.collection, id, fields).Commit(ctx); err != nil {
					res.Errors = append(res.Errors, itemError(id, err))
					continue
				}
				res.UpdatedIDs = append(res.UpdatedIDs, id)
			}
		}
	}

	res.UpdatedCount = len(res.UpdatedIDs)
	metrics.RecordBulkResult(res.UpdatedCount, len(res.Errors))
	logging.Ctx(ctx).Info().
		Str("component", "bulk").
		Str("collection", e.collection).
		Int("requested", len(ids)).
		Int("updated", res.UpdatedCount).
		Int("failed", len(res.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Bulk update finished")
	return res, nil
}

func itemError(id string, err error) ItemError {
	if errors.Is(err, docstore.ErrNotFound) {
		return ItemError{ID: id, Message: "account " + id + " not found"}
	}
	return ItemError{ID: id, Message: err.Error()}
}
