// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package presence tracks which administrative identities are currently online.

A Tracker keeps one in-memory record per identity, updated by Heartbeat. The
online state is derived on every read from the last heartbeat time:

	online = now - lastHeartbeat <= OnlineThreshold

The boundary is inclusive. ListOnline accepts any threshold, so callers can ask
for strictly online identities (OnlineThreshold) or recently active ones
(RecentThreshold); both views report Online against the online threshold.

# Mirroring

Every heartbeat is mirrored asynchronously into the presence collection of a
docstore.Store, behind the "presence-mirror" circuit breaker. Mirror failures
are logged and counted and never reach the heartbeat caller. When started, the
tracker subscribes to that collection and merges records written by other
instances, so every process converges on the same presence picture.

# Eviction

Start launches a sweep every SweepInterval. Records idle for longer than
IdleThreshold are removed and announced to subscribers with Evicted set.
*/
package presence
