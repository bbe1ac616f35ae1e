// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package docstore is the document store collaborator used by the engine.

It offers point reads, filtered queries, per-collection change feeds and
atomic write batches with server-assigned timestamps:

	store := docstore.NewMemoryStore()

	err := store.Batch().
	    Set("users", "u1", docstore.Fields{"email": "a@example.com", "createdAt": docstore.ServerTimestamp}).
	    Set("users/u1/readings", "r1", docstore.Fields{"usage": 12.5, "timestamp": time.Now()}).
	    Commit(ctx)

	latest, err := store.Query(ctx, "users/u1/readings",
	    docstore.Query{}.Order("timestamp", true).Take(1))

	cancel, err := store.Subscribe(ctx, "users", func(b docstore.ChangeBatch) {
	    // first call: Initial batch with every current document in Added
	})
	defer cancel()

# Collections

Collections are slash-separated paths. A sub-collection such as
"users/u1/readings" is an independent collection; it is not returned by
queries on "users".

# Change Feeds

Every commit produces one ChangeBatch per touched collection. Batches carry the
Origin of the store instance that committed them so that the replication relay
can tell local writes from replicated ones.

# Backends

MemoryStore keeps everything in maps. BadgerStore persists documents in
BadgerDB as JSON; values read back from it have JSON types, which the Fields
accessors (String, Float, Time, ...) absorb.
*/
package docstore
