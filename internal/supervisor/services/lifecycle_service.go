// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package services

import (
	"context"
	"fmt"
)

// StartStopper is the Start/Stop lifecycle of background components.
//
// Satisfied by *presence.Tracker (sweep ticker and change feed bridge).
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LifecycleService adapts a StartStopper to suture's Serve pattern:
//  1. Calls Start(ctx)
//  2. Waits for context cancellation
//  3. Calls Stop(), which blocks until the component's goroutines exit
//
// Example usage:
//
//	tracker := presence.New(cfg, store)
//	tree.AddDataService(services.NewLifecycleService("presence-tracker", tracker))
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService creates a lifecycle wrapper named name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service. A Start error is returned immediately so
// the supervisor restarts the service with backoff.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *LifecycleService) String() string {
	return s.name
}
