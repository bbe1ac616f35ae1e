// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package fanout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/tideline/internal/aggregate"
	"github.com/tomtom215/tideline/internal/cache"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func setup(t *testing.T) (*docstore.MemoryStore, *Fanout, *cache.Cache) {
	t.Helper()
	store := docstore.NewMemoryStore()
	err := store.Batch().
		Set("users", "u1", docstore.Fields{"email": "u1@example.com", "displayName": "One"}).
		Set("users", "u2", docstore.Fields{"email": "u2@example.com", "displayName": "Two"}).
		Set("users", "u3", docstore.Fields{"email": "u3@example.com", "displayName": "Three"}).
		Commit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c := cache.New(time.Minute)
	return store, New(store, aggregate.New(store, aggregate.DefaultConfig()), c), c
}

func receive(t *testing.T, ch <-chan models.LiveViews) models.LiveViews {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func expectNone(t *testing.T, ch <-chan models.LiveViews) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra snapshot of %d views", len(v))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestModificationDeliversFullSnapshot(t *testing.T) {
	ctx := context.Background()
	store, f, c := setup(t)

	ch := make(chan models.LiveViews, 8)
	unsubscribe, err := f.SubscribeToCollection(ctx, func(v models.LiveViews) { ch <- v })
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()

	initial := receive(t, ch)
	if len(initial) != 3 {
		t.Fatalf("initial snapshot has %d views, want 3", len(initial))
	}
	c.Set(cache.LiveViewKey("u2"), models.LiveView{AccountProfile: models.AccountProfile{ID: "u2", DisplayName: "Two"}})

	if err := store.Batch().Update("users", "u2", docstore.Fields{"displayName": "Two Renamed"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}

	snap := receive(t, ch)
	expectNone(t, ch)

	if len(snap) != 3 {
		t.Fatalf("snapshot has %d views, want the full list of 3", len(snap))
	}
	u2, ok := snap.Find("u2")
	if !ok || u2.DisplayName != "Two Renamed" {
		t.Errorf("modified view not refreshed: %+v", u2)
	}
	if _, ok := snap.Find("u1"); !ok {
		t.Error("unchanged entity missing from snapshot")
	}

	if _, ok := c.Get(cache.LiveViewKey("u2")); ok {
		t.Error("pre-change view of the modified account still cached")
	}
}

func TestSnapshotDoesNotPopulateCache(t *testing.T) {
	ctx := context.Background()
	store, f, c := setup(t)

	ch := make(chan models.LiveViews, 8)
	unsubscribe, err := f.SubscribeToCollection(ctx, func(v models.LiveViews) { ch <- v })
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()
	receive(t, ch)

	if n := c.Len(); n != 0 {
		t.Fatalf("initial snapshot cached %d views", n)
	}

	// An engine write invalidates u1 while the feed delivers a batch for u2;
	// the snapshot must not put a view of u1 back.
	c.Delete(cache.LiveViewKey("u1"))
	if err := store.Batch().Update("users", "u2", docstore.Fields{"displayName": "Two Renamed"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	receive(t, ch)
	if _, ok := c.Get(cache.LiveViewKey("u1")); ok {
		t.Error("snapshot wrote a view back into the cache")
	}
}

func TestRemovalInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store, f, c := setup(t)

	ch := make(chan models.LiveViews, 8)
	unsubscribe, err := f.SubscribeToCollection(ctx, func(v models.LiveViews) { ch <- v })
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()
	receive(t, ch)

	if err := store.Batch().Delete("users", "u3").Commit(ctx); err != nil {
		t.Fatal(err)
	}
	snap := receive(t, ch)
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d views, want 2", len(snap))
	}
	if _, ok := c.Get(cache.LiveViewKey("u3")); ok {
		t.Error("removed account still cached")
	}
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	ctx := context.Background()
	store, f, _ := setup(t)

	ch := make(chan models.LiveViews, 8)
	unsubscribe, err := f.SubscribeToCollection(ctx, func(v models.LiveViews) { ch <- v })
	if err != nil {
		t.Fatal(err)
	}
	receive(t, ch)

	unsubscribe()
	unsubscribe()

	if err := store.Batch().Update("users", "u1", docstore.Fields{"displayName": "Late"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	expectNone(t, ch)
}

func TestSamplesSubCollectionDoesNotTrigger(t *testing.T) {
	ctx := context.Background()
	store, f, _ := setup(t)

	ch := make(chan models.LiveViews, 8)
	unsubscribe, err := f.SubscribeToCollection(ctx, func(v models.LiveViews) { ch <- v })
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()
	receive(t, ch)

	err = store.Batch().Set("users/u1/readings", "r1", docstore.Fields{"usage": 5.0, "timestamp": time.Now()}).Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	expectNone(t, ch)
}
