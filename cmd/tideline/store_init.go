// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package main

import (
	"fmt"

	"github.com/tomtom215/tideline/internal/config"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
)

// replicaStore is what both store backends provide.
type replicaStore interface {
	docstore.Replica
	Close() error
}

// openStore opens the configured backend with instance as its origin.
func openStore(cfg config.StoreConfig, instance string) (replicaStore, error) {
	switch cfg.Backend {
	case "badger":
		store, err := docstore.OpenBadgerStore(docstore.BadgerConfig{
			Path:       cfg.Path,
			SyncWrites: cfg.SyncWrites,
		}, docstore.WithOrigin(instance))
		if err != nil {
			return nil, err
		}
		logging.Info().Str("path", cfg.Path).Bool("sync_writes", cfg.SyncWrites).Msg("BadgerDB document store opened")
		return store, nil
	case "memory", "":
		logging.Warn().Msg("Using in-memory document store; data is lost on restart")
		return docstore.NewMemoryStore(docstore.WithOrigin(instance)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
