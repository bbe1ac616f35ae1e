// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package main

import (
	"context"
	"io"
	"testing"

	"github.com/tomtom215/tideline/internal/config"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/supervisor"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestInstanceID(t *testing.T) {
	if got := instanceID("node-a"); got != "node-a" {
		t.Errorf("instanceID(node-a) = %q", got)
	}
	if got := instanceID(""); got == "" {
		t.Error("instanceID should fall back to a non-empty name")
	}
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{"memory", config.StoreConfig{Backend: "memory"}, false},
		{"badger", config.StoreConfig{Backend: "badger", Path: t.TempDir()}, false},
		{"unknown", config.StoreConfig{Backend: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(tt.cfg, "node-a")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()
			if store.Origin() != "node-a" {
				t.Errorf("Origin() = %q", store.Origin())
			}
		})
	}
}

func TestAddReplicationRejectsUnknownTransport(t *testing.T) {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Replication.Transport = "carrier-pigeon"

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		t.Fatal(err)
	}
	store, err := openStore(config.StoreConfig{Backend: "memory"}, "node-a")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := addReplication(context.Background(), tree, cfg, store); err == nil {
		t.Error("expected an error for an unknown transport")
	}
}

func TestAddReplicationGoChannel(t *testing.T) {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Replication.Transport = "gochannel"

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		t.Fatal(err)
	}
	store, err := openStore(config.StoreConfig{Backend: "memory"}, "node-a")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	closeTransport, err := addReplication(context.Background(), tree, cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	closeTransport()
}
