// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package aggregate builds LiveView objects from raw account and sample records.

# Pipeline

For one account the pipeline:
 1. reads the most recent sample (order by timestamp desc, limit 1), or
    synthesizes an all-zero sample stamped with the current time;
 2. reads up to Window (default 30) recent samples;
 3. computes totalUsage, averageDailyUsage and estimatedMonthlyBill (see
    ComputeRollup);
 4. resolves the display image: profile image URL, then photo URL, then a
    deterministic placeholder seeded by name or email;
 5. derives the valve state: open when the current flow rate is positive;
 6. counts unread alerts.

Only the identity read in Build can fail. Failed sub-fetches are logged,
counted in tideline_aggregate_degraded_total and treated as empty.

# Image Resolution

FallbackResolver is a pure function of the account fields. ProbingResolver adds
an HTTP HEAD check per candidate behind a circuit breaker and caches the result
under cache.ImageKey(id).
*/
package aggregate
