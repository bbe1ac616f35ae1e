// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package websocket pushes live view snapshots and presence events to
connected dashboards using gorilla/websocket.

Key Components:

  - Hub: owns the client set and broadcasts messages in client ID order
  - Client: one connection with a read pump (ping and subscribe handling)
    and a write pump
  - Feeds: subscribes to the engine and forwards its callbacks to the hub

Message Types:

  - liveviews: the complete list of live views after a change
  - presence: one presence event (heartbeat, remote merge or eviction)
  - ping / pong: application level keepalive
  - subscribe / subscribed: a client picks its topics, e.g.
    {"type":"subscribe","data":{"topics":["presence"]}}; an empty list
    restores both. Re-joining liveviews replays the latest snapshot.

Clients that connect after a change receive the most recent liveviews
snapshot immediately. A client whose send buffer is full is disconnected
rather than slowing down the others.

Usage:

	hub := websocket.NewHub()
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
	tree.AddMessagingService(services.NewRunnerService("websocket-feeds", websocket.NewFeeds(eng, hub)))

	// in the HTTP handler
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
	    return
	}
	_ = websocket.NewClient(hub, conn).Start(r.Context())
*/
package websocket
