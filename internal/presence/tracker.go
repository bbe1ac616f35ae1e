// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tomtom215/tideline/internal/breaker"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// Config configures a Tracker.
type Config struct {
	// Collection is the mirrored presence collection.
	Collection string

	// OnlineThreshold is the freshness window of "online".
	OnlineThreshold time.Duration

	// RecentThreshold is the wider "recently active" window.
	RecentThreshold time.Duration

	// IdleThreshold is the age after which the sweep evicts a record.
	IdleThreshold time.Duration

	// SweepInterval is the period of the eviction sweep.
	SweepInterval time.Duration

	// Instance identifies this process in mirrored records. Records mirrored
	// by other instances are merged through the change feed bridge.
	Instance string
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Collection:      "presence",
		OnlineThreshold: 5 * time.Minute,
		RecentThreshold: 15 * time.Minute,
		IdleThreshold:   time.Hour,
		SweepInterval:   time.Minute,
	}
}

// Tracker is the process-wide presence registry.
//
// One mutex guards the record map; heartbeats and the sweep never observe a
// partially updated record. Online state is always computed from the current
// time and the last heartbeat, never read from a stored flag.
type Tracker struct {
	cfg   Config
	store docstore.Store
	clock quartz.Clock
	cb    *gobreaker.CircuitBreaker[interface{}]

	mu      sync.Mutex
	records map[string]models.PresenceRecord

	subsMu sync.RWMutex
	subs   map[uuid.UUID]func(models.PresenceEvent)

	// mirror writers, one per identity with pending writes
	queue   *mirrorQueue
	mirrors sync.WaitGroup

	// Lifecycle - protected by lifeMu
	lifeMu       sync.Mutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	bridgeCancel docstore.CancelFunc
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock. Tests pass a quartz mock.
func WithClock(c quartz.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// New creates a tracker. store may be nil, which disables mirroring and the
// cross-process bridge.
func New(cfg Config, store docstore.Store, opts ...Option) *Tracker {
	defaults := DefaultConfig()
	if cfg.Collection == "" {
		cfg.Collection = defaults.Collection
	}
	if cfg.OnlineThreshold <= 0 {
		cfg.OnlineThreshold = defaults.OnlineThreshold
	}
	if cfg.RecentThreshold <= 0 {
		cfg.RecentThreshold = defaults.RecentThreshold
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = defaults.IdleThreshold
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.Instance == "" {
		cfg.Instance = uuid.NewString()
	}

	t := &Tracker{
		cfg:     cfg,
		store:   store,
		clock:   quartz.NewReal(),
		cb:      breaker.New(breaker.DefaultConfig("presence-mirror")),
		queue:   newMirrorQueue(),
		records: make(map[string]models.PresenceRecord),
		subs:    make(map[uuid.UUID]func(models.PresenceEvent)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Heartbeat records a liveness signal for id.
//
// Local subscribers are notified before Heartbeat returns. The mirror write to
// the store happens asynchronously; its failure is logged and never reaches
// the caller.
func (t *Tracker) Heartbeat(ctx context.Context, id string, meta models.DeviceMetadata) error {
	if id == "" {
		return &models.ValidationError{Field: "identityId", Reason: "required"}
	}

	now := t.clock.Now()
	t.mu.Lock()
	rec, ok := t.records[id]
	if !ok {
		rec = models.PresenceRecord{IdentityID: id}
	}
	rec.LastHeartbeat = now
	rec.Online = true
	rec.Instance = t.cfg.Instance
	if !meta.IsZero() {
		rec.Metadata = meta
	}
	t.records[id] = rec
	tracked := len(t.records)
	t.mu.Unlock()

	metrics.PresenceHeartbeats.Inc()
	metrics.PresenceTracked.Set(float64(tracked))

	t.notify(models.PresenceEvent{Record: rec, Source: models.PresenceSourceLocal})
	t.mirror(context.WithoutCancel(ctx), rec)
	return nil
}

// IsOnline reports whether id's last heartbeat is within the online threshold.
func (t *Tracker) IsOnline(id string) bool {
	now := t.clock.Now()
	t.mu.Lock()
	rec, ok := t.records[id]
	t.mu.Unlock()
	return ok && rec.OnlineAt(now, t.cfg.OnlineThreshold)
}

// Get returns the record of id with Online recomputed.
func (t *Tracker) Get(id string) (models.PresenceRecord, bool) {
	now := t.clock.Now()
	t.mu.Lock()
	rec, ok := t.records[id]
	t.mu.Unlock()
	if !ok {
		return models.PresenceRecord{}, false
	}
	rec.Online = rec.OnlineAt(now, t.cfg.OnlineThreshold)
	return rec, true
}

// ListOnline returns every record whose last heartbeat is within threshold,
// newest first. Callers choose the threshold: the online threshold for
// "strictly online" and a wider one for "recently active". The Online field of
// each result reflects the online threshold, so a recently active but stale
// identity is listed with Online=false.
func (t *Tracker) ListOnline(threshold time.Duration) []models.PresenceRecord {
	now := t.clock.Now()
	t.mu.Lock()
	out := make([]models.PresenceRecord, 0, len(t.records))
	for _, rec := range t.records {
		if rec.OnlineAt(now, threshold) {
			rec.Online = rec.OnlineAt(now, t.cfg.OnlineThreshold)
			out = append(out, rec)
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastHeartbeat.Equal(out[j].LastHeartbeat) {
			return out[i].LastHeartbeat.After(out[j].LastHeartbeat)
		}
		return out[i].IdentityID < out[j].IdentityID
	})
	return out
}

// Subscribe registers fn for presence events. The returned function removes
// the subscription and is safe to call more than once.
func (t *Tracker) Subscribe(fn func(models.PresenceEvent)) func() {
	id := uuid.New()
	t.subsMu.Lock()
	t.subs[id] = fn
	t.subsMu.Unlock()

	return func() {
		t.subsMu.Lock()
		delete(t.subs, id)
		t.subsMu.Unlock()
	}
}

func (t *Tracker) notify(ev models.PresenceEvent) {
	t.subsMu.RLock()
	fns := make([]func(models.PresenceEvent), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subsMu.RUnlock()

	for _, fn := range fns {
		t.deliver(fn, ev)
	}
}

func (t *Tracker) deliver(fn func(models.PresenceEvent), ev models.PresenceEvent) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("component", "presence").
				Str("identity_id", ev.Record.IdentityID).
				Interface("panic", r).
				Msg("Presence subscriber panicked")
		}
	}()
	fn(ev)
}

// Sweep evicts records idle longer than the idle threshold and returns how
// many were removed. Evicted identities start over from unknown on their next
// heartbeat.
func (t *Tracker) Sweep(ctx context.Context) int {
	now := t.clock.Now()

	t.mu.Lock()
	var evicted []models.PresenceRecord
	online := 0
	for id, rec := range t.records {
		if now.Sub(rec.LastHeartbeat) > t.cfg.IdleThreshold {
			delete(t.records, id)
			rec.Online = false
			evicted = append(evicted, rec)
			continue
		}
		if rec.OnlineAt(now, t.cfg.OnlineThreshold) {
			online++
		}
	}
	tracked := len(t.records)
	t.mu.Unlock()

	metrics.PresenceTracked.Set(float64(tracked))
	metrics.PresenceOnline.Set(float64(online))
	metrics.PresenceEvictions.Add(float64(len(evicted)))

	for _, rec := range evicted {
		t.notify(models.PresenceEvent{Record: rec, Source: models.PresenceSourceLocal, Evicted: true})
		if rec.Instance == t.cfg.Instance {
			t.mirror(context.WithoutCancel(ctx), rec)
		}
	}

	if len(evicted) > 0 {
		logging.Debug().
			Str("component", "presence").
			Int("evicted", len(evicted)).
			Int("tracked", tracked).
			Msg("Presence sweep evicted idle records")
	}
	return len(evicted)
}

// Flush waits for in-flight mirror writes. Call it after the last Heartbeat
// (shutdown, tests); it must not race with new heartbeats.
func (t *Tracker) Flush() {
	t.mirrors.Wait()
}

// Start launches the sweep ticker and the change feed bridge. It returns nil
// if the tracker is already running.
func (t *Tracker) Start(ctx context.Context) error {
	t.lifeMu.Lock()
	defer t.lifeMu.Unlock()
	if t.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	if t.store != nil {
		bridgeCancel, err := t.store.Subscribe(runCtx, t.cfg.Collection, t.merge)
		if err != nil {
			cancel()
			return err
		}
		t.bridgeCancel = bridgeCancel
	}

	tkr := t.clock.TickerFunc(runCtx, t.cfg.SweepInterval, func() error {
		t.Sweep(runCtx)
		return nil
	}, "presence", "sweep")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tkr.Wait()
	}()

	t.cancel = cancel
	t.done = done
	t.running = true

	logging.Info().
		Str("component", "presence").
		Str("instance", t.cfg.Instance).
		Dur("online_threshold", t.cfg.OnlineThreshold).
		Dur("idle_threshold", t.cfg.IdleThreshold).
		Dur("sweep_interval", t.cfg.SweepInterval).
		Msg("Presence tracker started")
	return nil
}

// Stop halts the sweep and the bridge, then waits for in-flight mirror writes.
func (t *Tracker) Stop() {
	t.lifeMu.Lock()
	if !t.running {
		t.lifeMu.Unlock()
		return
	}
	t.cancel()
	done := t.done
	bridgeCancel := t.bridgeCancel
	t.running = false
	t.bridgeCancel = nil
	t.lifeMu.Unlock()

	<-done
	if bridgeCancel != nil {
		bridgeCancel()
	}
	t.Flush()

	logging.Info().Str("component", "presence").Msg("Presence tracker stopped")
}

// IsRunning returns whether the sweep loop is active.
func (t *Tracker) IsRunning() bool {
	t.lifeMu.Lock()
	defer t.lifeMu.Unlock()
	return t.running
}
