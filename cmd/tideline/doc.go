// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package main is the entry point for the Tideline server.

Tideline serves live per-account views (profile, latest sample, rollups,
image and valve state) over a document store, tracks which administrators
are online, and manages privileged accounts mirrored across two
collections.

# Application Architecture

	RootSupervisor ("tideline")
	├── DataSupervisor ("data-layer")
	│   ├── presence-tracker (sweep + change feed bridge)
	│   └── cache-janitor (when CACHE_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── nats-server (embedded, when NATS_EMBEDDED)
	│   ├── replication-relay (when REPLICATION_ENABLED)
	│   ├── websocket-hub
	│   └── websocket-feeds
	└── APISupervisor ("api-layer")
	    └── http-server

Initialization order: configuration, logging, document store, casbin
enforcer, cache, engine, supervisor tree.

# Configuration

Koanf v2 layers environment variables over a YAML file (CONFIG_PATH,
./config.yaml or /etc/tideline/config.yaml) over defaults:

	STORE_BACKEND=memory          # memory or badger
	STORE_PATH=/data/tideline     # badger directory
	AGGREGATE_WINDOW=30           # samples rolled up per live view
	PRESENCE_ONLINE_THRESHOLD=5m
	PRESENCE_RECENT_THRESHOLD=15m
	PRESENCE_IDLE_THRESHOLD=1h
	PRESENCE_INSTANCE=            # defaults to the host name
	REPLICATION_ENABLED=false
	REPLICATION_TRANSPORT=nats    # nats or gochannel
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=true
	HTTP_PORT=8080
	CORS_ORIGINS=*
	LOG_LEVEL=info
	LOG_FORMAT=json

# Replication

With REPLICATION_ENABLED each instance publishes the change batches it
commits to a NATS subject and applies the batches of other instances,
so presence and account changes made on one instance reach the
subscribers of every other instance.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the API
layer, then messaging, then data, each within SUPERVISOR_SHUTDOWN_TIMEOUT,
and the document store is closed last.
*/
package main
