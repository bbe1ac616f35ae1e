// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// DefaultWindow is the number of most recent samples rolled up.
const DefaultWindow = 30

// Config names the collections the pipeline reads and sizes the window.
type Config struct {
	// Accounts is the general accounts collection.
	Accounts string

	// Samples is the per-account sample sub-collection name; samples of
	// account id live in "<Accounts>/<id>/<Samples>".
	Samples string

	// Alerts is the top-level alerts collection.
	Alerts string

	// Window is the maximum number of recent samples rolled up.
	Window int
}

// DefaultConfig returns the standard collection layout.
func DefaultConfig() Config {
	return Config{
		Accounts: "users",
		Samples:  "readings",
		Alerts:   "alerts",
		Window:   DefaultWindow,
	}
}

// SamplesCollection returns the sample sub-collection path of an account.
func (c Config) SamplesCollection(id string) string {
	return c.Accounts + "/" + id + "/" + c.Samples
}

// Pipeline turns an account record and its samples into a LiveView.
//
// Only the identity read can fail a build. Every sub-fetch (latest sample,
// window, unread alerts) that errors is logged as degraded, counted, and
// treated as "no data", so a build yields either a fully populated view or an
// error.
type Pipeline struct {
	store  docstore.Store
	cfg    Config
	images ImageResolver
	clock  quartz.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for synthesized samples and ComputedAt.
func WithClock(c quartz.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithImageResolver replaces the default FallbackResolver.
func WithImageResolver(r ImageResolver) Option {
	return func(p *Pipeline) { p.images = r }
}

// New creates a pipeline reading from store.
func New(store docstore.Store, cfg Config, opts ...Option) *Pipeline {
	if cfg.Window < 1 {
		cfg.Window = DefaultWindow
	}
	p := &Pipeline{
		store:  store,
		cfg:    cfg,
		images: FallbackResolver{},
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Build reads account id and assembles its LiveView. A missing account yields
// an error matching models.ErrNotFound; other store faults are returned
// wrapped.
func (p *Pipeline) Build(ctx context.Context, id string) (models.LiveView, error) {
	start := time.Now()
	doc, err := p.store.Get(ctx, p.cfg.Accounts, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			metrics.RecordPipelineBuild(time.Since(start), "not_found")
			return models.LiveView{}, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
		}
		metrics.RecordPipelineBuild(time.Since(start), "error")
		return models.LiveView{}, fmt.Errorf("read account %s: %w", id, err)
	}

	view := p.BuildFromDocument(ctx, doc)
	metrics.RecordPipelineBuild(time.Since(start), "ok")
	return view, nil
}

// BuildFromDocument assembles a LiveView from an already-read account
// document. It never fails.
func (p *Pipeline) BuildFromDocument(ctx context.Context, doc docstore.Document) models.LiveView {
	account := models.AccountFromDocument(doc)
	now := p.clock.Now()
	samples := p.cfg.SamplesCollection(account.ID)

	// Current sample, or a zero sample stamped now.
	current := models.ZeroSample(now)
	latest, err := p.store.Query(ctx, samples, docstore.Query{}.Order(models.FieldTimestamp, true).Take(1))
	switch {
	case err != nil:
		p.degraded(ctx, "latest_sample", account.ID, err)
	case len(latest) > 0:
		current = models.SampleFromDocument(latest[0])
	}

	// Rollup window, newest first.
	var window []models.TimeSeriesSample
	docs, err := p.store.Query(ctx, samples, docstore.Query{}.Order(models.FieldTimestamp, true).Take(p.cfg.Window))
	if err != nil {
		p.degraded(ctx, "window", account.ID, err)
	} else {
		window = make([]models.TimeSeriesSample, 0, len(docs))
		for _, d := range docs {
			window = append(window, models.SampleFromDocument(d))
		}
	}

	rollup := ComputeRollup(window)

	// Unread alerts.
	unread := 0
	alerts, err := p.store.Query(ctx, p.cfg.Alerts, docstore.Query{}.
		Where(models.FieldAccountID, docstore.OpEqual, account.ID).
		Where(models.FieldRead, docstore.OpEqual, false))
	if err != nil {
		p.degraded(ctx, "alerts", account.ID, err)
	} else {
		unread = len(alerts)
	}

	return models.LiveView{
		AccountProfile:       account,
		CurrentSample:        current,
		TotalUsage:           rollup.TotalUsage,
		AverageDailyUsage:    rollup.AverageDailyUsage,
		EstimatedMonthlyBill: rollup.EstimatedMonthlyBill,
		WindowSize:           rollup.WindowSize,
		ImageURL:             p.images.ResolveImage(ctx, account),
		ValveState:           models.ValveStateFor(current.FlowRate),
		UnreadAlerts:         unread,
		ComputedAt:           now,
	}
}

func (p *Pipeline) degraded(ctx context.Context, stage, id string, err error) {
	metrics.RecordDegraded(stage)
	logging.Ctx(logging.ContextWithAccountID(ctx, id)).Warn().
		Err(err).
		Str("component", "aggregate").
		Str("stage", stage).
		Msg("Sub-fetch failed, defaulting to no data")
}
