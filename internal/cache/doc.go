// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package cache provides the time-boxed memoization layer in front of the
aggregation pipeline.

Entries expire a fixed TTL after insertion; reads never slide the window.
There is no size-based eviction: the cache holds at most one live view and one
resolved image URL per account, so it is bounded by the number of accounts.

# Usage

	views := cache.New(5*time.Minute, cache.WithClock(clock))

	if v, ok := views.Get(cache.LiveViewKey(id)); ok {
	    return v.(models.LiveView), nil
	}
	view, err := pipeline.Build(ctx, id)
	views.Set(cache.LiveViewKey(id), view)

	// Invalidate after a write against the account
	views.Delete(cache.LiveViewKey(id))

# Cleanup

Expired entries are removed lazily on Get. RunWithContext purges entries that
are never read again and is run as a supervised service.

# Failure Mode

Caching is an optimization only. Components accept a nil Cacher and fall
through to live computation.
*/
package cache
