// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package fanout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/tideline/internal/aggregate"
	"github.com/tomtom215/tideline/internal/cache"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// Fanout turns change batches of the accounts collection into complete live
// view snapshots.
type Fanout struct {
	store    docstore.Store
	pipeline *aggregate.Pipeline
	cache    cache.Cacher
}

// New creates a fan-out over the pipeline's accounts collection. cacher may be
// nil.
func New(store docstore.Store, pipeline *aggregate.Pipeline, cacher cache.Cacher) *Fanout {
	return &Fanout{store: store, pipeline: pipeline, cache: cacher}
}

// SubscribeToCollection opens the change feed of the accounts collection once
// and calls fn with the full current list of live views after every batch,
// including the initial one. Calls are made in feed order from a single
// goroutine. The returned unsubscribe stops further calls, releases the feed
// and may be called more than once.
func (f *Fanout) SubscribeToCollection(ctx context.Context, fn func(models.LiveViews)) (func(), error) {
	collection := f.pipeline.Config().Accounts
	var stopped atomic.Bool

	cancel, err := f.store.Subscribe(ctx, collection, func(batch docstore.ChangeBatch) {
		if stopped.Load() {
			return
		}
		views, err := f.snapshot(ctx, batch)
		if err != nil {
			logging.Ctx(ctx).Error().
				Err(err).
				Str("component", "fanout").
				Str("collection", collection).
				Msg("Snapshot recompute failed, skipping batch")
			return
		}
		if stopped.Load() {
			return
		}
		fn(views)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	metrics.FanoutSubscriptions.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
			metrics.FanoutSubscriptions.Dec()
		})
	}, nil
}

// snapshot re-reads the whole collection and rebuilds every view. Views are
// built sequentially; the work is store latency, not CPU.
//
// Cached views of removed and modified accounts are dropped. Snapshot views
// are never written to the cache: one built before a concurrent account
// write could otherwise overwrite that write's invalidation.
func (f *Fanout) snapshot(ctx context.Context, batch docstore.ChangeBatch) (models.LiveViews, error) {
	start := time.Now()
	if f.cache != nil {
		for _, docs := range [][]docstore.Document{batch.Removed, batch.Modified} {
			for _, d := range docs {
				f.cache.Delete(cache.LiveViewKey(d.ID))
			}
		}
	}

	docs, err := f.store.Query(ctx, f.pipeline.Config().Accounts, docstore.Query{})
	if err != nil {
		return nil, err
	}

	views := make(models.LiveViews, 0, len(docs))
	for _, doc := range docs {
		views = append(views, f.pipeline.BuildFromDocument(ctx, doc))
	}

	metrics.FanoutRecomputes.Inc()
	logging.Ctx(ctx).Debug().
		Str("component", "fanout").
		Bool("initial", batch.Initial).
		Int("changed", batch.Size()).
		Int("views", len(views)).
		Dur("duration", time.Since(start)).
		Msg("Live view snapshot recomputed")
	return views, nil
}
