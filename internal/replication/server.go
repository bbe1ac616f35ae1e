// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package replication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host string
	Port int

	// StoreDir enables JetStream when set.
	StoreDir string

	// ReadyTimeout bounds the wait for the server to accept connections.
	ReadyTimeout time.Duration
}

// EmbeddedServer runs a NATS server inside the process for single-node
// deployments without external dependencies.
type EmbeddedServer struct {
	mu     sync.Mutex
	server *server.Server
	config ServerConfig
}

// NewEmbeddedServer creates an embedded server. It does not start it.
func NewEmbeddedServer(cfg ServerConfig) *EmbeddedServer {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	return &EmbeddedServer{config: cfg}
}

// Start launches the server and waits until it accepts connections. Starting
// a running server is a no-op; a server that was shut down is replaced.
func (s *EmbeddedServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil && s.server.Running() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := &server.Options{
		ServerName: "tideline",
		Host:       s.config.Host,
		Port:       s.config.Port,
		JetStream:  s.config.StoreDir != "",
		StoreDir:   s.config.StoreDir,
		MaxPayload: 8 * 1024 * 1024,
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(s.config.ReadyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready within %s", s.config.ReadyTimeout)
	}
	s.server = ns
	return nil
}

// ClientURL returns the connection URL for clients, or "" before Start.
func (s *EmbeddedServer) ClientURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return ""
	}
	return s.server.ClientURL()
}

// Shutdown stops the server and waits for it to exit or for ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) {
	s.mu.Lock()
	ns := s.server
	s.mu.Unlock()
	if ns == nil {
		return
	}

	ns.Shutdown()
	done := make(chan struct{})
	go func() {
		ns.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// IsRunning reports whether the server is accepting connections.
func (s *EmbeddedServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil && s.server.Running()
}
