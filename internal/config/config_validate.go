// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateCollections(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateAggregate(); err != nil {
		return err
	}

	if err := c.validatePresence(); err != nil {
		return err
	}

	if err := c.validateReplication(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSupervisor(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validStoreBackends defines the allowed document store backends
var validStoreBackends = map[string]bool{
	"memory": true,
	"badger": true,
}

func (c *Config) validateStore() error {
	if !validStoreBackends[c.Store.Backend] {
		return fmt.Errorf("STORE_BACKEND must be one of: memory, badger")
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=badger")
	}
	return nil
}

// validateCollections rejects empty or colliding collection names.
func (c *Config) validateCollections() error {
	names := map[string]string{
		"COLLECTION_ACCOUNTS": c.Collections.Accounts,
		"COLLECTION_ADMINS":   c.Collections.Admins,
		"COLLECTION_SAMPLES":  c.Collections.Samples,
		"COLLECTION_ALERTS":   c.Collections.Alerts,
		"COLLECTION_PRESENCE": c.Collections.Presence,
	}
	for env, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s must not be empty", env)
		}
		if strings.Contains(name, "/") {
			return fmt.Errorf("%s must not contain '/'", env)
		}
	}
	if c.Collections.Accounts == c.Collections.Admins {
		return fmt.Errorf("COLLECTION_ACCOUNTS and COLLECTION_ADMINS must differ")
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateAggregate() error {
	if c.Aggregate.Window < 1 {
		return fmt.Errorf("AGGREGATE_WINDOW must be at least 1")
	}
	if c.Aggregate.ProbeImages && c.Aggregate.ProbeTimeout <= 0 {
		return fmt.Errorf("PROBE_TIMEOUT must be positive when PROBE_IMAGES=true")
	}
	return nil
}

// validatePresence enforces online <= recent < idle. The idle threshold must
// exceed the online threshold or records would be evicted while still online.
func (c *Config) validatePresence() error {
	p := c.Presence
	if p.OnlineThreshold <= 0 || p.RecentThreshold <= 0 || p.IdleThreshold <= 0 {
		return fmt.Errorf("presence thresholds must be positive")
	}
	if p.RecentThreshold < p.OnlineThreshold {
		return fmt.Errorf("PRESENCE_RECENT_THRESHOLD (%s) must not be shorter than PRESENCE_ONLINE_THRESHOLD (%s)",
			p.RecentThreshold, p.OnlineThreshold)
	}
	if p.IdleThreshold <= p.OnlineThreshold {
		return fmt.Errorf("PRESENCE_IDLE_THRESHOLD (%s) must be longer than PRESENCE_ONLINE_THRESHOLD (%s)",
			p.IdleThreshold, p.OnlineThreshold)
	}
	if p.SweepInterval <= 0 {
		return fmt.Errorf("PRESENCE_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// validTransports defines the allowed replication transports
var validTransports = map[string]bool{
	"gochannel": true,
	"nats":      true,
}

func (c *Config) validateReplication() error {
	if !c.Replication.Enabled {
		return nil
	}
	if !validTransports[c.Replication.Transport] {
		return fmt.Errorf("REPLICATION_TRANSPORT must be one of: gochannel, nats")
	}
	if c.Replication.Topic == "" {
		return fmt.Errorf("REPLICATION_TOPIC is required when REPLICATION_ENABLED=true")
	}
	if c.Replication.Transport != "nats" {
		return nil
	}
	if c.Replication.URL == "" {
		return fmt.Errorf("NATS_URL is required when REPLICATION_TRANSPORT=nats")
	}
	if !strings.HasPrefix(c.Replication.URL, "nats://") && !strings.HasPrefix(c.Replication.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://")
	}
	if c.Replication.EmbeddedServer {
		if c.Replication.Port < 1 || c.Replication.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
		if c.Replication.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD must be positive")
	}
	if c.Supervisor.FailureDecay <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_DECAY must be positive")
	}
	if c.Supervisor.ShutdownTimeout <= 0 {
		return fmt.Errorf("SUPERVISOR_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
