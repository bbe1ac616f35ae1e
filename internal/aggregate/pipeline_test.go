// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// failingStore fails queries on selected collections and optionally Get.
type failingStore struct {
	docstore.Store
	failQuery map[string]bool
	getErr    error
}

func (f *failingStore) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if f.failQuery[collection] {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.Query(ctx, collection, q)
}

func (f *failingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if f.getErr != nil {
		return docstore.Document{}, f.getErr
	}
	return f.Store.Get(ctx, collection, id)
}

func seedAccount(t *testing.T, s docstore.Store, id string, fields docstore.Fields) {
	t.Helper()
	if err := s.Batch().Set("users", id, fields).Commit(context.Background()); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func seedSamples(t *testing.T, s docstore.Store, id string, base time.Time, usage, cost []float64) {
	t.Helper()
	b := s.Batch()
	for i := range usage {
		b.Set("users/"+id+"/readings", fmt.Sprintf("r%03d", i), docstore.Fields{
			"usage":     usage[i],
			"cost":      cost[i],
			"flowRate":  float64(i),
			"timestamp": base.Add(time.Duration(i) * time.Hour),
		})
	}
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("seed samples: %v", err)
	}
}

func TestBuildScenarioRollups(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedAccount(t, store, "u1", docstore.Fields{"email": "u1@example.com", "displayName": "Unit One"})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedSamples(t, store, "u1", base, []float64{100, 200, 300}, []float64{1.0, 2.0, 3.0})

	view, err := New(store, DefaultConfig()).Build(ctx, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if view.TotalUsage != 600 {
		t.Errorf("TotalUsage = %v, want 600", view.TotalUsage)
	}
	if view.AverageDailyUsage != 200 {
		t.Errorf("AverageDailyUsage = %v, want 200", view.AverageDailyUsage)
	}
	if view.EstimatedMonthlyBill != 60 {
		t.Errorf("EstimatedMonthlyBill = %v, want 60", view.EstimatedMonthlyBill)
	}
	if view.WindowSize != 3 {
		t.Errorf("WindowSize = %d, want 3", view.WindowSize)
	}
	// Latest sample is the one with the newest timestamp (flowRate 2).
	if view.CurrentSample.Usage != 300 || view.ValveState != models.ValveOpen {
		t.Errorf("unexpected current sample %+v / valve %s", view.CurrentSample, view.ValveState)
	}
}

func TestBuildWithoutSamplesIsFullyPopulated(t *testing.T) {
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	store := docstore.NewMemoryStore()
	seedAccount(t, store, "u2", docstore.Fields{"email": "U2@Example.com"})

	view, err := New(store, DefaultConfig(), WithClock(mClock)).Build(ctx, "u2")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if view.TotalUsage != 0 || view.AverageDailyUsage != 0 || view.EstimatedMonthlyBill != 0 || view.WindowSize != 0 {
		t.Errorf("expected zero rollups, got %+v", view)
	}
	if !view.CurrentSample.Timestamp.Equal(mClock.Now()) {
		t.Errorf("synthesized sample timestamp = %v, want %v", view.CurrentSample.Timestamp, mClock.Now())
	}
	if view.ValveState != models.ValveClosed {
		t.Errorf("ValveState = %s, want closed", view.ValveState)
	}
	if view.ImageURL == "" {
		t.Error("expected placeholder image")
	}
	if !view.ComputedAt.Equal(mClock.Now()) {
		t.Error("ComputedAt not taken from clock")
	}
}

func TestBuildWindowIsBounded(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedAccount(t, store, "u3", docstore.Fields{})

	n := 35
	usage := make([]float64, n)
	cost := make([]float64, n)
	for i := range usage {
		usage[i] = 1
		cost[i] = 2
	}
	seedSamples(t, store, "u3", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), usage, cost)

	view, err := New(store, DefaultConfig()).Build(ctx, "u3")
	if err != nil {
		t.Fatal(err)
	}
	if view.WindowSize != DefaultWindow || view.TotalUsage != DefaultWindow {
		t.Errorf("window = %d total = %v, want %d", view.WindowSize, view.TotalUsage, DefaultWindow)
	}
	if view.EstimatedMonthlyBill != 60 {
		t.Errorf("EstimatedMonthlyBill = %v, want 60", view.EstimatedMonthlyBill)
	}
}

func TestBuildDegradesOnSubFetchFailure(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemoryStore()
	seedAccount(t, mem, "u4", docstore.Fields{"email": "u4@example.com"})
	seedSamples(t, mem, "u4", time.Now(), []float64{5}, []float64{1})
	if err := mem.Batch().Set("alerts", "a1", docstore.Fields{"accountId": "u4", "read": false}).Commit(ctx); err != nil {
		t.Fatal(err)
	}

	store := &failingStore{Store: mem, failQuery: map[string]bool{"users/u4/readings": true, "alerts": true}}
	view, err := New(store, DefaultConfig()).Build(ctx, "u4")
	if err != nil {
		t.Fatalf("sub-fetch failure must not surface: %v", err)
	}
	if view.TotalUsage != 0 || view.WindowSize != 0 || view.UnreadAlerts != 0 {
		t.Errorf("expected zeroed data, got %+v", view)
	}
	if view.Email != "u4@example.com" {
		t.Error("identity fields must still be populated")
	}
}

func TestBuildNotFound(t *testing.T) {
	_, err := New(docstore.NewMemoryStore(), DefaultConfig()).Build(context.Background(), "ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildPropagatesIdentityReadFault(t *testing.T) {
	store := &failingStore{Store: docstore.NewMemoryStore(), getErr: errors.New("connection reset")}
	_, err := New(store, DefaultConfig()).Build(context.Background(), "u1")
	if err == nil || errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected opaque failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("original message lost: %v", err)
	}
}

func TestBuildCountsUnreadAlerts(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	seedAccount(t, store, "u5", docstore.Fields{})
	err := store.Batch().
		Set("alerts", "a1", docstore.Fields{"accountId": "u5", "read": false}).
		Set("alerts", "a2", docstore.Fields{"accountId": "u5", "read": true}).
		Set("alerts", "a3", docstore.Fields{"accountId": "u5", "read": false}).
		Set("alerts", "a4", docstore.Fields{"accountId": "other", "read": false}).
		Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	view, err := New(store, DefaultConfig()).Build(ctx, "u5")
	if err != nil {
		t.Fatal(err)
	}
	if view.UnreadAlerts != 2 {
		t.Errorf("UnreadAlerts = %d, want 2", view.UnreadAlerts)
	}
}

func TestComputeRollup(t *testing.T) {
	tests := []struct {
		name    string
		usage   []float64
		cost    []float64
		total   float64
		average float64
		bill    float64
	}{
		{"empty", nil, nil, 0, 0, 0},
		{"single", []float64{10}, []float64{2}, 10, 10, 60},
		{"scenario", []float64{100, 200, 300}, []float64{1, 2, 3}, 600, 200, 60},
		{"five", []float64{1, 2, 3, 4, 5}, []float64{1, 1, 1, 1, 1}, 15, 3, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := make([]models.TimeSeriesSample, len(tt.usage))
			for i := range tt.usage {
				window[i] = models.TimeSeriesSample{Usage: tt.usage[i], Cost: tt.cost[i]}
			}
			r := ComputeRollup(window)
			if r.TotalUsage != tt.total || r.AverageDailyUsage != tt.average || r.EstimatedMonthlyBill != tt.bill {
				t.Errorf("got %+v, want total=%v avg=%v bill=%v", r, tt.total, tt.average, tt.bill)
			}
			if r.WindowSize != len(tt.usage) {
				t.Errorf("WindowSize = %d", r.WindowSize)
			}
		})
	}
}
