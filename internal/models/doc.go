// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package models defines the data structures shared across Tideline.

Stored records:
  - AccountProfile: identity record in the general accounts collection
  - AdminAccount: privileged identity mirrored into both account collections
  - TimeSeriesSample: immutable measurement in an account's sample sub-collection
  - Alert: per-account event record (read only)
  - PresenceRecord: mirrored liveness state of an administrative identity

Derived records:
  - LiveView: account plus current sample, rollups, image and valve state
  - LiveViews: complete snapshot delivered by the change fan-out

Errors:
  - ErrNotFound: identity record absent
  - ValidationError: input rejected before any write
  - PartialMirrorFailure: one mirror written, the other failed

Each stored type has a *FromDocument constructor that tolerates sparse
documents: missing fields take zero values, never errors.
*/
package models
