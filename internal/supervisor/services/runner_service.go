// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package services

import (
	"context"
)

// ContextRunner is a component whose run loop already follows the
// suture.Service contract.
//
// Satisfied by:
//   - *websocket.Hub
//   - *websocket.Feeds
//   - *cache.Cache (expiry janitor)
//   - *replication.Relay
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService delegates to RunWithContext and gives the component a name
// for supervisor logs.
//
// Example usage:
//
//	hub := websocket.NewHub()
//	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService creates a runner wrapper named name.
func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	return r.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (r *RunnerService) String() string {
	return r.name
}
