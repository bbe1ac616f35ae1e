// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package engine is the facade consumed by the HTTP and websocket surfaces.

It wires one docstore.Store into:

  - aggregate.Pipeline for GetLiveView, fronted by an optional cache.Cacher;
  - fanout.Fanout for SubscribeToAllLiveViews;
  - presence.Tracker for Heartbeat, IsOnline, ListOnline and SubscribeToPresence;
  - registrar.Registrar for the dual-collection account operations;
  - bulk.Executor for BulkUpdate.

Every account write made through the engine deletes the cached live view and
image of the account. Writes made directly against the store are only picked
up when the cached entry expires or the fan-out sees the change and drops it.

The engine does not start anything. The presence tracker's sweep is owned by
whoever calls Presence().Start, normally the supervisor tree.
*/
package engine
