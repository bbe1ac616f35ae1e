// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Store       StoreConfig       `koanf:"store"`
	Collections CollectionsConfig `koanf:"collections"`
	Cache       CacheConfig       `koanf:"cache"`
	Aggregate   AggregateConfig   `koanf:"aggregate"`
	Presence    PresenceConfig    `koanf:"presence"`
	Replication ReplicationConfig `koanf:"replication"`
	Authz       AuthzConfig       `koanf:"authz"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend"`

	// Path is the badger data directory.
	Path string `koanf:"path"`

	// SyncWrites fsyncs every badger commit.
	SyncWrites bool `koanf:"sync_writes"`
}

// CollectionsConfig names the document collections.
type CollectionsConfig struct {
	Accounts string `koanf:"accounts"`
	Admins   string `koanf:"admins"`
	Samples  string `koanf:"samples"` // sub-collection under each account
	Alerts   string `koanf:"alerts"`
	Presence string `koanf:"presence"`
}

// CacheConfig configures the live view cache.
type CacheConfig struct {
	Enabled         bool          `koanf:"enabled"`
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// AggregateConfig configures the aggregation pipeline.
type AggregateConfig struct {
	// Window is the number of most recent samples rolled up.
	Window int `koanf:"window"`

	// PlaceholderBaseURL is the avatar service used for placeholders.
	PlaceholderBaseURL string `koanf:"placeholder_base_url"`

	// ProbeImages HEAD-checks profile image URLs before using them.
	ProbeImages  bool          `koanf:"probe_images"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// PresenceConfig holds presence thresholds.
type PresenceConfig struct {
	OnlineThreshold time.Duration `koanf:"online_threshold"`
	RecentThreshold time.Duration `koanf:"recent_threshold"`
	IdleThreshold   time.Duration `koanf:"idle_threshold"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`

	// Instance identifies this process. Generated when empty.
	Instance string `koanf:"instance"`
}

// ReplicationConfig configures change batch replication between instances.
type ReplicationConfig struct {
	Enabled bool `koanf:"enabled"`

	// Transport is "gochannel" (single process) or "nats".
	Transport string `koanf:"transport"`

	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	StoreDir       string `koanf:"store_dir"`
	Topic          string `koanf:"topic"`
}

// AuthzConfig points at optional Casbin model and policy files.
type AuthzConfig struct {
	ModelPath  string        `koanf:"model_path"`
	PolicyPath string        `koanf:"policy_path"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller adds file:line to each entry.
	Caller bool `koanf:"caller"`
}

// SupervisorConfig holds supervisor tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
