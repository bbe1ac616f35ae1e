// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
)

// Message metadata keys.
const (
	MetadataOrigin     = "origin"
	MetadataCollection = "collection"
)

// DefaultTopic is the subject change batches are published on.
const DefaultTopic = "tideline.changes"

// Config selects the collections a relay replicates.
type Config struct {
	Topic       string
	Collections []string
}

// Relay publishes change batches committed on the local replica and applies
// batches published by other instances.
//
// Only batches whose Origin is the local replica are published, so a remote
// batch applied here is never echoed back.
type Relay struct {
	replica   docstore.Replica
	transport Transport
	cfg       Config

	ready     chan struct{}
	readyOnce sync.Once
}

// NewRelay creates a relay for replica over transport.
func NewRelay(replica docstore.Replica, transport Transport, cfg Config) *Relay {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Relay{
		replica:   replica,
		transport: transport,
		cfg:       cfg,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the relay has subscribed to the transport and to every
// local collection for the first time.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// RunWithContext replicates until ctx is canceled.
func (r *Relay) RunWithContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := r.transport.Subscriber.Subscribe(ctx, r.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.cfg.Topic, err)
	}

	var feeds []docstore.CancelFunc
	defer func() {
		for _, stop := range feeds {
			stop()
		}
	}()
	for _, collection := range r.cfg.Collections {
		stop, err := r.replica.Subscribe(ctx, collection, r.publish)
		if err != nil {
			return fmt.Errorf("subscribe to collection %s: %w", collection, err)
		}
		feeds = append(feeds, stop)
	}

	r.readyOnce.Do(func() { close(r.ready) })
	logging.Info().
		Str("component", "replication").
		Str("origin", r.replica.Origin()).
		Strs("collections", r.cfg.Collections).
		Msg("Replication relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("replication subscription closed")
			}
			r.apply(ctx, msg)
		}
	}
}

// publish is the local change feed callback.
func (r *Relay) publish(batch docstore.ChangeBatch) {
	if batch.Initial || batch.Empty() || batch.Origin != r.replica.Origin() {
		return
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		metrics.ReplicationErrors.WithLabelValues("encode").Inc()
		logging.Error().Err(err).Str("component", "replication").Msg("Failed to encode change batch")
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetadataOrigin, batch.Origin)
	msg.Metadata.Set(MetadataCollection, batch.Collection)

	if err := r.transport.Publisher.Publish(r.cfg.Topic, msg); err != nil {
		metrics.ReplicationErrors.WithLabelValues("publish").Inc()
		logging.Warn().Err(err).
			Str("component", "replication").
			Str("collection", batch.Collection).
			Msg("Failed to publish change batch")
		return
	}
	metrics.ReplicationPublished.Inc()
}

// apply handles one message from the transport. Messages are always acked:
// a batch that cannot be decoded or applied is dropped rather than redelivered
// forever.
func (r *Relay) apply(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	if msg.Metadata.Get(MetadataOrigin) == r.replica.Origin() {
		return
	}

	var batch docstore.ChangeBatch
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		metrics.ReplicationErrors.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Str("component", "replication").Str("message_uuid", msg.UUID).Msg("Dropping undecodable change batch")
		return
	}

	if err := r.replica.ApplyRemote(ctx, batch); err != nil {
		metrics.ReplicationErrors.WithLabelValues("apply").Inc()
		logging.Warn().Err(err).
			Str("component", "replication").
			Str("collection", batch.Collection).
			Str("origin", batch.Origin).
			Msg("Failed to apply remote change batch")
		return
	}
	metrics.ReplicationApplied.Inc()
}
