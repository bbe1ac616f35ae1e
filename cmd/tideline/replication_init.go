// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/tideline/internal/config"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/replication"
	"github.com/tomtom215/tideline/internal/supervisor"
	"github.com/tomtom215/tideline/internal/supervisor/services"
)

// addReplication builds the transport and adds the relay (and, when
// configured, an embedded NATS server) to the messaging layer. The returned
// func closes the transport after the tree has stopped.
func addReplication(ctx context.Context, tree *supervisor.SupervisorTree, cfg *config.Config, store docstore.Replica) (func(), error) {
	rc := cfg.Replication
	wmLogger := logging.NewWatermillAdapter()

	var transport replication.Transport
	switch rc.Transport {
	case "gochannel":
		// Only useful in one process; kept for local runs and tests.
		transport = replication.NewGoChannelTransport(wmLogger)

	case "nats":
		url := rc.URL
		if rc.EmbeddedServer {
			ns := replication.NewEmbeddedServer(replication.ServerConfig{
				Host:     rc.Host,
				Port:     rc.Port,
				StoreDir: rc.StoreDir,
			})
			// Started here so the client can connect before the tree runs;
			// the service then owns restarts and shutdown.
			if err := ns.Start(ctx); err != nil {
				return nil, fmt.Errorf("start embedded NATS server: %w", err)
			}
			url = ns.ClientURL()
			tree.AddMessagingService(services.NewNATSServerService(ns, cfg.Supervisor.ShutdownTimeout))
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}

		var err error
		transport, err = replication.NewNATSTransport(replication.DefaultNATSConfig(url), wmLogger)
		if err != nil {
			return nil, fmt.Errorf("connect replication transport: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown replication transport %q", rc.Transport)
	}

	relay := replication.NewRelay(store, transport, replication.Config{
		Topic: rc.Topic,
		Collections: []string{
			cfg.Collections.Accounts,
			cfg.Collections.Admins,
			cfg.Collections.Alerts,
			cfg.Collections.Presence,
		},
	})
	tree.AddMessagingService(services.NewRunnerService("replication-relay", relay))

	logging.Info().
		Str("transport", rc.Transport).
		Str("topic", rc.Topic).
		Str("origin", store.Origin()).
		Msg("Replication enabled")

	return func() {
		if err := transport.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing replication transport")
		}
	}, nil
}
