// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package websocket

import (
	"context"
	"fmt"

	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
)

// Source is the part of the engine the feeds subscribe to.
type Source interface {
	SubscribeToAllLiveViews(ctx context.Context, fn func(models.LiveViews)) (func(), error)
	SubscribeToPresence(fn func(models.PresenceEvent)) func()
}

// Feeds forwards live view snapshots and presence events from the engine to
// the hub for as long as it runs.
type Feeds struct {
	source Source
	hub    *Hub
}

// NewFeeds creates the engine-to-hub bridge.
func NewFeeds(source Source, hub *Hub) *Feeds {
	return &Feeds{source: source, hub: hub}
}

// RunWithContext subscribes both feeds and blocks until ctx is canceled.
func (f *Feeds) RunWithContext(ctx context.Context) error {
	stopViews, err := f.source.SubscribeToAllLiveViews(ctx, f.hub.BroadcastLiveViews)
	if err != nil {
		return fmt.Errorf("subscribe to live views: %w", err)
	}
	defer stopViews()

	stopPresence := f.source.SubscribeToPresence(f.hub.BroadcastPresence)
	defer stopPresence()

	logging.Info().Str("component", "websocket-feeds").Msg("Forwarding live views and presence to websocket clients")
	<-ctx.Done()
	return ctx.Err()
}
