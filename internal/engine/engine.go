// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package engine

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/tomtom215/tideline/internal/aggregate"
	"github.com/tomtom215/tideline/internal/bulk"
	"github.com/tomtom215/tideline/internal/cache"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/fanout"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
	"github.com/tomtom215/tideline/internal/presence"
	"github.com/tomtom215/tideline/internal/registrar"
)

// Config holds the collection layout and component settings.
type Config struct {
	Accounts string
	Admins   string
	Samples  string
	Alerts   string
	Window   int
	Presence presence.Config
}

// DefaultConfig returns the standard layout and thresholds.
func DefaultConfig() Config {
	agg := aggregate.DefaultConfig()
	return Config{
		Accounts: agg.Accounts,
		Admins:   registrar.DefaultConfig().Admins,
		Samples:  agg.Samples,
		Alerts:   agg.Alerts,
		Window:   agg.Window,
		Presence: presence.DefaultConfig(),
	}
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	cache  cache.Cacher
	clock  quartz.Clock
	images aggregate.ImageResolver
	perms  registrar.PermissionSource
}

// WithCache enables the live view cache.
func WithCache(c cache.Cacher) Option {
	return func(o *options) { o.cache = c }
}

// WithClock sets the clock of the pipeline and the presence tracker.
func WithClock(c quartz.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithImageResolver replaces the pure placeholder resolver.
func WithImageResolver(r aggregate.ImageResolver) Option {
	return func(o *options) { o.images = r }
}

// WithPermissions sets the role permission source of the registrar.
func WithPermissions(p registrar.PermissionSource) Option {
	return func(o *options) { o.perms = p }
}

// Engine is the surface consumed by presentation code. It composes the cache,
// aggregation pipeline, presence tracker, registrar, fan-out and bulk
// executor over one document store.
type Engine struct {
	store     docstore.Store
	cache     cache.Cacher
	pipeline  *aggregate.Pipeline
	presence  *presence.Tracker
	registrar *registrar.Registrar
	fanout    *fanout.Fanout
	bulk      *bulk.Executor
}

// New wires an engine over store.
func New(store docstore.Store, cfg Config, opts ...Option) *Engine {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var pipeOpts []aggregate.Option
	var presOpts []presence.Option
	if o.clock != nil {
		pipeOpts = append(pipeOpts, aggregate.WithClock(o.clock))
		presOpts = append(presOpts, presence.WithClock(o.clock))
	}
	if o.images != nil {
		pipeOpts = append(pipeOpts, aggregate.WithImageResolver(o.images))
	}

	pipeline := aggregate.New(store, aggregate.Config{
		Accounts: cfg.Accounts,
		Samples:  cfg.Samples,
		Alerts:   cfg.Alerts,
		Window:   cfg.Window,
	}, pipeOpts...)

	return &Engine{
		store:     store,
		cache:     o.cache,
		pipeline:  pipeline,
		presence:  presence.New(cfg.Presence, store, presOpts...),
		registrar: registrar.New(store, registrar.Config{Admins: cfg.Admins, Accounts: cfg.Accounts}, o.perms),
		fanout:    fanout.New(store, pipeline, o.cache),
		bulk:      bulk.New(store, cfg.Accounts),
	}
}

// Presence returns the presence tracker so a supervisor can own its
// lifecycle.
func (e *Engine) Presence() *presence.Tracker {
	return e.presence
}

// Store returns the underlying document store.
func (e *Engine) Store() docstore.Store {
	return e.store
}

// GetLiveView returns the live view of account id, from cache when fresh.
// A missing account yields an error matching models.ErrNotFound.
func (e *Engine) GetLiveView(ctx context.Context, id string) (models.LiveView, error) {
	key := cache.LiveViewKey(id)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			if view, ok := v.(models.LiveView); ok {
				metrics.RecordCacheLookup("liveview", true)
				return view, nil
			}
		}
		metrics.RecordCacheLookup("liveview", false)
	}

	view, err := e.pipeline.Build(ctx, id)
	if err != nil {
		return models.LiveView{}, err
	}
	if e.cache != nil {
		e.cache.Set(key, view)
	}
	return view, nil
}

// SubscribeToAllLiveViews calls fn with the complete list of live views after
// every change to the accounts collection.
func (e *Engine) SubscribeToAllLiveViews(ctx context.Context, fn func(models.LiveViews)) (func(), error) {
	return e.fanout.SubscribeToCollection(ctx, fn)
}

// Heartbeat records that identity id is alive.
func (e *Engine) Heartbeat(ctx context.Context, id string, meta models.DeviceMetadata) error {
	return e.presence.Heartbeat(ctx, id, meta)
}

// IsOnline reports whether id heartbeated within the online threshold.
func (e *Engine) IsOnline(id string) bool {
	return e.presence.IsOnline(id)
}

// ListOnline returns the identities seen within threshold.
func (e *Engine) ListOnline(threshold time.Duration) []models.PresenceRecord {
	return e.presence.ListOnline(threshold)
}

// ListStrictlyOnline returns the identities seen within the online threshold.
func (e *Engine) ListStrictlyOnline() []models.PresenceRecord {
	return e.presence.ListOnline(e.presence.Config().OnlineThreshold)
}

// ListRecentlyActive returns the identities seen within the wider recent
// threshold. Entries older than the online threshold carry Online=false.
func (e *Engine) ListRecentlyActive() []models.PresenceRecord {
	return e.presence.ListOnline(e.presence.Config().RecentThreshold)
}

// SubscribeToPresence registers fn for presence events.
func (e *Engine) SubscribeToPresence(fn func(models.PresenceEvent)) func() {
	return e.presence.Subscribe(fn)
}

// CreateAccount registers a privileged account in both mirrors.
func (e *Engine) CreateAccount(ctx context.Context, in registrar.CreateInput) (registrar.Result, error) {
	res, err := e.registrar.Create(ctx, in)
	e.invalidate(res.Account.ID)
	return res, err
}

// UpdateAccount changes a privileged account in both mirrors.
func (e *Engine) UpdateAccount(ctx context.Context, id string, in registrar.UpdateInput) (registrar.Result, error) {
	res, err := e.registrar.Update(ctx, id, in)
	e.invalidate(id)
	return res, err
}

// DeleteAccount removes a privileged account from both mirrors.
func (e *Engine) DeleteAccount(ctx context.Context, id string) (registrar.Result, error) {
	res, err := e.registrar.Delete(ctx, id)
	e.invalidate(id)
	return res, err
}

// PromoteToPrivileged grants privileged status to a general account.
func (e *Engine) PromoteToPrivileged(ctx context.Context, id string) (registrar.Result, error) {
	res, err := e.registrar.Promote(ctx, id)
	e.invalidate(id)
	return res, err
}

// ToggleAccountStatus flips a privileged account between active and inactive.
func (e *Engine) ToggleAccountStatus(ctx context.Context, id string) (registrar.Result, error) {
	res, err := e.registrar.ToggleStatus(ctx, id)
	e.invalidate(id)
	return res, err
}

// GetAdmin returns a privileged account.
func (e *Engine) GetAdmin(ctx context.Context, id string) (models.AdminAccount, error) {
	return e.registrar.Get(ctx, id)
}

// BulkUpdate merges changes into every account in ids.
func (e *Engine) BulkUpdate(ctx context.Context, ids []string, changes docstore.Fields) (bulk.Result, error) {
	res, err := e.bulk.BulkUpdate(ctx, ids, changes)
	for _, id := range res.UpdatedIDs {
		e.invalidate(id)
	}
	return res, err
}

func (e *Engine) invalidate(id string) {
	if e.cache == nil || id == "" {
		return
	}
	e.cache.Delete(cache.LiveViewKey(id))
	e.cache.Delete(cache.ImageKey(id))
	metrics.CacheInvalidations.Inc()
	logging.Debug().Str("component", "engine").Str("account_id", id).Msg("Live view invalidated")
}
