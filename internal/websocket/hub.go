// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// Message types exchanged with dashboards.
const (
	MessageTypeLiveViews = "liveviews"
	MessageTypePresence  = "presence"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"

	// MessageTypeSubscribe is sent by clients with a SubscribeRequest;
	// the hub answers with MessageTypeSubscribed.
	MessageTypeSubscribe  = "subscribe"
	MessageTypeSubscribed = "subscribed"
)

// Message is the envelope of every frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const queueSize = 256

// Hub owns the connected dashboards and fans broadcasts out to them.
//
// Live view broadcasts are complete lists, so the hub retains the latest one
// and hands it to each client that registers afterwards. Presence events are
// deltas and are not retained.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	queue chan Message

	mu       sync.RWMutex
	clients  map[uint64]*Client
	retained *Message
}

// NewHub returns a hub that does nothing until RunWithContext is called.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		queue:      make(chan Message, queueSize),
		clients:    make(map[uint64]*Client),
	}
}

// RunWithContext serves registrations and broadcasts until ctx ends, then
// disconnects every client and returns ctx.Err().
//
// Pending registrations are drained before each broadcast so a client that
// connected first never misses a message sent after it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			h.stop(err)
			return err
		}
		if h.drainMembership() {
			continue
		}

		select {
		case <-ctx.Done():
			h.stop(ctx.Err())
			return ctx.Err()
		case c := <-h.Register:
			h.join(c)
		case c := <-h.Unregister:
			h.leave(c)
		case msg := <-h.queue:
			h.deliver(msg)
		}
	}
}

// drainMembership handles at most one waiting register or unregister and
// reports whether it did.
func (h *Hub) drainMembership() bool {
	select {
	case c := <-h.Register:
		h.join(c)
		return true
	case c := <-h.Unregister:
		h.leave(c)
		return true
	default:
		return false
	}
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	if h.retained != nil && c.wants(MessageTypeLiveViews) {
		c.trySend(*h.retained)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(n))
	logging.Debug().Str("component", "websocket-hub").Uint64("client_id", c.id).Int("total_clients", n).Msg("Dashboard connected")
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	h.dropLocked(c)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(n))
	logging.Debug().Str("component", "websocket-hub").Uint64("client_id", c.id).Int("total_clients", n).Msg("Dashboard disconnected")
}

// dropLocked removes c and closes its send channel. Caller holds h.mu.
func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.closeSend()
	}
}

func (h *Hub) stop(cause error) {
	h.mu.Lock()
	n := len(h.clients)
	for _, c := range h.ordered() {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(0)

	reason := "context_canceled"
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", n).
		Msg("Websocket hub stopped")
}

// deliver sends msg to every interested client in connection order. A client
// whose buffer is full is disconnected rather than waited on.
func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.Type == MessageTypeLiveViews {
		kept := msg
		h.retained = &kept
	}

	dropped := 0
	for _, c := range h.ordered() {
		if !c.wants(msg.Type) || c.trySend(msg) {
			continue
		}
		h.dropLocked(c)
		dropped++
	}
	if dropped > 0 {
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
		logging.Warn().Str("component", "websocket-hub").Int("dropped", dropped).Msg("Dropped slow websocket clients")
	}
	metrics.WebSocketMessagesSent.WithLabelValues(msg.Type).Inc()
}

// ordered returns the clients by ascending ID. Caller holds h.mu.
func (h *Hub) ordered() []*Client {
	ids := make([]uint64, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Client, len(ids))
	for i, id := range ids {
		out[i] = h.clients[id]
	}
	return out
}

// BroadcastJSON queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.queue <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("component", "websocket-hub").Str("message_type", messageType).Msg("Broadcast queue full, dropping message")
	}
}

// BroadcastLiveViews sends a complete live view list.
func (h *Hub) BroadcastLiveViews(views models.LiveViews) {
	h.BroadcastJSON(MessageTypeLiveViews, views)
}

// BroadcastPresence sends one presence transition.
func (h *Hub) BroadcastPresence(ev models.PresenceEvent) {
	h.BroadcastJSON(MessageTypePresence, ev)
}

// Snapshot returns the retained live view message, if one was broadcast.
func (h *Hub) Snapshot() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.retained == nil {
		return Message{}, false
	}
	return *h.retained, true
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes msg as sent on the wire.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
