// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package replication keeps document stores of several Tideline instances
converged by exchanging change batches over Watermill.

Each instance runs a Relay over its docstore.Replica. The relay subscribes to
the local change feed of the replicated collections and publishes every batch
the local store originated. Batches received from the transport are applied
with Replica.ApplyRemote, which re-emits them on the local feed so that the
presence tracker and the live view fan-out of this instance observe writes
made elsewhere.

Two transports are provided:

  - NewGoChannelTransport: in-process, used by tests and by binaries that host
    several stores
  - NewNATSTransport: watermill-nats over core NATS subjects

EmbeddedServer runs nats-server in-process for single-node deployments.

Usage:

	transport, err := replication.NewNATSTransport(
	    replication.DefaultNATSConfig(url), logging.NewWatermillAdapter())
	relay := replication.NewRelay(store, transport, replication.Config{
	    Collections: []string{"presence", "users"},
	})
	tree.AddMessagingService(services.NewRunnerService("replication-relay", relay))
*/
package replication
