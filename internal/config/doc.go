// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package config provides centralized configuration management for Tideline.

Configuration is loaded with Koanf v2 from three layers, each overriding the
previous one:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file, found via CONFIG_PATH or DefaultConfigPaths
 3. Environment variables listed in envMappings

Unknown environment variables are ignored.

# Configuration Structure

  - StoreConfig: document store backend (memory or badger)
  - CollectionsConfig: names of the accounts, admins, samples, alerts and
    presence collections
  - CacheConfig: live view cache TTL and cleanup
  - AggregateConfig: sample window and profile image resolution
  - PresenceConfig: online, recent and idle thresholds and sweep interval
  - ReplicationConfig: change replication over NATS or an in-process channel
  - AuthzConfig: optional Casbin model and policy overrides
  - ServerConfig: HTTP listener, CORS and rate limiting
  - LoggingConfig: zerolog level and format
  - SupervisorConfig: suture restart policy

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(cfg.Presence.OnlineThreshold)

# Example YAML

	store:
	  backend: badger
	  path: /var/lib/tideline
	presence:
	  online_threshold: 5m
	  recent_threshold: 15m
	server:
	  port: 8080
	  cors_origins:
	    - https://dashboard.example.com

Validate is run after loading and rejects inconsistent presence thresholds,
an empty sample window and unknown backends or transports.
*/
package config
