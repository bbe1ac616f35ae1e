// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package supervisor provides process supervision for Tideline using suture v4.

Every long-running component runs as a supervised service with automatic
restart, failure isolation and ordered shutdown.

# Overview

	RootSupervisor ("tideline")
	├── DataSupervisor ("data-layer")
	│   ├── presence-tracker (LifecycleService)
	│   └── cache-janitor (RunnerService, if CACHE_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── nats-server (NATSServerService, if NATS_EMBEDDED)
	│   ├── replication-relay (RunnerService, if REPLICATION_ENABLED)
	│   ├── websocket-hub (RunnerService)
	│   └── websocket-feeds (RunnerService)
	└── APISupervisor ("api-layer")
	    └── http-server (HTTPServerService)

A replication failure restarts only the messaging layer; presence and the API
keep working against the local store.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureDecay:     cfg.Supervisor.FailureDecay,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddDataService(services.NewLifecycleService("presence-tracker", eng.Presence()))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.Timeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree exited")
	}

Services(layer) lists what a layer currently runs, by String() name.

Supervisor events (restarts, backoff, panics) are logged through sutureslog
into the zerolog logger.
*/
package supervisor
