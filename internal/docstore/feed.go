// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tomtom215/tideline/internal/logging"
)

// ChangeBatch is one delivery from a collection change feed: every document
// added, modified or removed in that collection by a single commit.
type ChangeBatch struct {
	Collection string     `json:"collection"`
	Origin     string     `json:"origin"`
	Initial    bool       `json:"initial,omitempty"`
	Added      []Document `json:"added,omitempty"`
	Modified   []Document `json:"modified,omitempty"`
	Removed    []Document `json:"removed,omitempty"`
}

// Empty reports whether the batch carries no changes.
func (b ChangeBatch) Empty() bool {
	return len(b.Added) == 0 && len(b.Modified) == 0 && len(b.Removed) == 0
}

// Size is the total number of changed documents.
func (b ChangeBatch) Size() int {
	return len(b.Added) + len(b.Modified) + len(b.Removed)
}

// CancelFunc stops a subscription. It is safe to call more than once.
type CancelFunc func()

// feedHub routes change batches to per-collection subscribers.
// Publishing never blocks: every subscriber owns an unbounded queue drained by
// its own goroutine, so a slow callback delays only itself.
type feedHub struct {
	mu   sync.Mutex
	subs map[string]map[string]*subscriber
}

func newFeedHub() *feedHub {
	return &feedHub{subs: make(map[string]map[string]*subscriber)}
}

// add registers fn on collection and queues initial as its first delivery.
// The caller must hold whatever lock keeps initial consistent with later
// publishes.
func (h *feedHub) add(ctx context.Context, collection string, initial ChangeBatch, fn func(ChangeBatch)) CancelFunc {
	s := &subscriber{
		id:     uuid.NewString(),
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[string]*subscriber)
	}
	h.subs[collection][s.id] = s
	h.mu.Unlock()

	s.push(initial)
	go s.run()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subs[collection]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(h.subs, collection)
			}
		}
		h.mu.Unlock()
		s.stop()
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-s.done:
			}
		}()
	}
	return cancel
}

// publish queues each batch for the subscribers of its collection.
func (h *feedHub) publish(batches []ChangeBatch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range batches {
		for _, s := range h.subs[b.Collection] {
			s.push(b)
		}
	}
}

// closeAll stops every subscriber.
func (h *feedHub) closeAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[string]*subscriber)
	h.mu.Unlock()
	for _, subs := range all {
		for _, s := range subs {
			s.stop()
		}
	}
}

type subscriber struct {
	id     string
	fn     func(ChangeBatch)
	mu     sync.Mutex
	queue  []ChangeBatch
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) push(b ChangeBatch) {
	s.mu.Lock()
	s.queue = append(s.queue, b)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			b := s.queue[0]
			s.queue[0] = ChangeBatch{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.deliver(b)
		}
	}
}

func (s *subscriber) deliver(b ChangeBatch) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("component", "docstore").
				Str("collection", b.Collection).
				Interface("panic", r).
				Msg("Change feed callback panicked")
		}
	}()
	s.fn(b)
}
