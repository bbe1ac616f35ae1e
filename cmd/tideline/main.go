// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/tideline/internal/aggregate"
	"github.com/tomtom215/tideline/internal/api"
	"github.com/tomtom215/tideline/internal/authz"
	"github.com/tomtom215/tideline/internal/cache"
	"github.com/tomtom215/tideline/internal/config"
	"github.com/tomtom215/tideline/internal/engine"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/presence"
	"github.com/tomtom215/tideline/internal/supervisor"
	"github.com/tomtom215/tideline/internal/supervisor/services"
	ws "github.com/tomtom215/tideline/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Tideline stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring of every component
func run() error {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	instance := instanceID(cfg.Presence.Instance)
	logging.Init(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Caller:   cfg.Logging.Caller,
		Instance: instance,
	})

	logging.Info().
		Str("instance", instance).
		Str("store_backend", cfg.Store.Backend).
		Bool("replication", cfg.Replication.Enabled).
		Msg("Starting Tideline with supervisor tree")

	store, err := openStore(cfg.Store, instance)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	enforcer, err := authz.NewEnforcer(&authz.EnforcerConfig{
		ModelPath:  cfg.Authz.ModelPath,
		PolicyPath: cfg.Authz.PolicyPath,
		CacheTTL:   cfg.Authz.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("initialize authorization: %w", err)
	}

	var liveCache *cache.Cache
	var imageCache cache.Cacher // stays a nil interface when caching is off
	engineOpts := []engine.Option{engine.WithPermissions(enforcer)}
	if cfg.Cache.Enabled {
		liveCache = cache.New(cfg.Cache.TTL, cache.WithCleanupInterval(cfg.Cache.CleanupInterval))
		imageCache = liveCache
		engineOpts = append(engineOpts, engine.WithCache(liveCache))
	}
	if cfg.Aggregate.ProbeImages {
		engineOpts = append(engineOpts, engine.WithImageResolver(
			aggregate.NewProbingResolver(cfg.Aggregate.PlaceholderBaseURL, cfg.Aggregate.ProbeTimeout, imageCache),
		))
	} else {
		engineOpts = append(engineOpts, engine.WithImageResolver(
			aggregate.FallbackResolver{PlaceholderBaseURL: cfg.Aggregate.PlaceholderBaseURL},
		))
	}

	eng := engine.New(store, engine.Config{
		Accounts: cfg.Collections.Accounts,
		Admins:   cfg.Collections.Admins,
		Samples:  cfg.Collections.Samples,
		Alerts:   cfg.Collections.Alerts,
		Window:   cfg.Aggregate.Window,
		Presence: presence.Config{
			Collection:      cfg.Collections.Presence,
			OnlineThreshold: cfg.Presence.OnlineThreshold,
			RecentThreshold: cfg.Presence.RecentThreshold,
			IdleThreshold:   cfg.Presence.IdleThreshold,
			SweepInterval:   cfg.Presence.SweepInterval,
			Instance:        instance,
		},
	}, engineOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sutureslog needs slog; the handler forwards to zerolog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Data layer
	tree.AddDataService(services.NewLifecycleService("presence-tracker", eng.Presence()))
	if liveCache != nil {
		tree.AddDataService(services.NewRunnerService("cache-janitor", liveCache))
	}

	// Messaging layer
	if cfg.Replication.Enabled {
		closeTransport, err := addReplication(ctx, tree, cfg, store)
		if err != nil {
			return err
		}
		defer closeTransport()
	}

	hub := ws.NewHub()
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
	tree.AddMessagingService(services.NewRunnerService("websocket-feeds", ws.NewFeeds(eng, hub)))

	// API layer
	chiCfg := api.DefaultChiMiddlewareConfig()
	chiCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	chiCfg.RateLimitRequests = cfg.Server.RateLimitReqs
	chiCfg.RateLimitWindow = cfg.Server.RateLimitWindow

	handler := api.NewHandler(eng, hub, cfg.Server.CORSOrigins,
		api.WithReadiness(eng.Presence().IsRunning))
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, chiCfg).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	serveErr := <-tree.ServeBackground(ctx)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	if serveErr != nil {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return serveErr
}

// instanceID returns the configured instance name, or the host name.
func instanceID(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "tideline"
}
