// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package services provides suture.Service wrappers for Tideline components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve pattern and names the service for supervisor logs:

  - HTTPServerService: ListenAndServe/Shutdown of *http.Server
  - LifecycleService: Start/Stop components such as the presence tracker
  - RunnerService: components with RunWithContext (websocket hub and feeds,
    cache janitor, replication relay)
  - NATSServerService: the embedded NATS server

Wrappers return ctx.Err() on graceful shutdown and wrap start failures so the
supervisor can apply its restart backoff.
*/
package services
