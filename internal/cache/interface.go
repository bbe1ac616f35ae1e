// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package cache

// Cacher is what the engine, the fan-out and the image resolver need from a
// cache: put, get and invalidate. Entries expire a fixed TTL after they were
// put; reading an entry never extends it.
//
// A nil Cacher, or one that always misses, must leave results unchanged.
type Cacher interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Delete(key string)
}

// Key namespaces. Live views and resolved images of the same account are
// invalidated together when the account document changes.
const (
	PrefixLiveView = "liveview:"
	PrefixImage    = "image:"
)

// LiveViewKey is the key of an account's live view.
func LiveViewKey(id string) string { return PrefixLiveView + id }

// ImageKey is the key of an account's resolved image URL.
func ImageKey(id string) string { return PrefixImage + id }

var _ Cacher = (*Cache)(nil)
