// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NATSServer is the lifecycle of *replication.EmbeddedServer.
type NATSServer interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// ErrNATSServerDied is returned by NATSServerService.Serve when the embedded
// server stops without being asked to.
var ErrNATSServerDied = errors.New("embedded NATS server stopped unexpectedly")

const natsLivenessInterval = 2 * time.Second

// NATSServerService keeps the embedded NATS server up under the messaging
// layer. main starts the server ahead of the tree so the relay can connect
// during startup; Start on a running server does nothing.
type NATSServerService struct {
	server          NATSServer
	shutdownTimeout time.Duration
	checkEvery      time.Duration
}

// NewNATSServerService wraps server. A non-positive shutdownTimeout means 10s.
func NewNATSServerService(server NATSServer, shutdownTimeout time.Duration) *NATSServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		checkEvery:      natsLivenessInterval,
	}
}

// Serve starts the server and polls it until ctx ends. A server that dies on
// its own makes Serve return ErrNATSServerDied so the supervisor restarts it.
func (s *NATSServerService) Serve(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return fmt.Errorf("start embedded NATS: %w", err)
	}

	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
			s.server.Shutdown(stopCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				return ErrNATSServerDied
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *NATSServerService) String() string {
	return "nats-server"
}
