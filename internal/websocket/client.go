// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tideline/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Topic bits. A client receives a broadcast unless its topic is muted.
const (
	topicLiveViews uint32 = 1 << iota
	topicPresence
)

var topicBits = map[string]uint32{
	MessageTypeLiveViews: topicLiveViews,
	MessageTypePresence:  topicPresence,
}

// SubscribeRequest is the data of a "subscribe" message. It replaces the
// client's topic set; an empty list restores every topic.
type SubscribeRequest struct {
	Topics []string `json:"topics"`
}

// clientIDCounter gives clients a stable broadcast order.
var clientIDCounter atomic.Uint64

// Client is one dashboard connection.
type Client struct {
	id    uint64
	hub   *Hub
	conn  *websocket.Conn
	send  chan Message
	muted atomic.Uint32 // zero value: every topic

	sendMu sync.Mutex
	closed bool
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// ID returns the client's identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// wants reports whether a broadcast of messageType goes to this client.
// Types without a topic bit are always delivered.
func (c *Client) wants(messageType string) bool {
	bit, ok := topicBits[messageType]
	return !ok || c.muted.Load()&bit == 0
}

// subscribe replaces the topic set and returns the accepted topics.
func (c *Client) subscribe(req SubscribeRequest) []string {
	if len(req.Topics) == 0 {
		c.muted.Store(0)
		return []string{MessageTypeLiveViews, MessageTypePresence}
	}
	var keep uint32
	accepted := make([]string, 0, len(req.Topics))
	for _, t := range req.Topics {
		if bit, ok := topicBits[t]; ok && keep&bit == 0 {
			keep |= bit
			accepted = append(accepted, t)
		}
	}
	c.muted.Store((topicLiveViews | topicPresence) &^ keep)
	return accepted
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the hub has already closed the client.
func (c *Client) trySend(msg Message) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once; writePump then closes the socket.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// reply queues a direct answer, dropping it when it cannot be queued.
func (c *Client) reply(msg Message) {
	c.trySend(msg)
}

func (c *Client) handle(msg Message) {
	switch msg.Type {
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})
	case MessageTypeSubscribe:
		var req SubscribeRequest
		if raw, err := json.Marshal(msg.Data); err == nil {
			_ = json.Unmarshal(raw, &req)
		}
		hadViews := c.wants(MessageTypeLiveViews)
		c.reply(Message{Type: MessageTypeSubscribed, Data: SubscribeRequest{Topics: c.subscribe(req)}})
		// Re-joining the live view topic starts from the complete list.
		if !hadViews && c.wants(MessageTypeLiveViews) {
			if snap, ok := c.hub.Snapshot(); ok {
				c.reply(snap)
			}
		}
	}
}

// readPump handles client messages until the connection fails, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("component", "websocket").Uint64("client_id", c.id).Msg("Unexpected websocket close")
			}
			return
		}
		c.handle(msg)
	}
}

// writePump sends queued messages and keepalive pings. It exits when the hub
// closes the send channel or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = c.conn.WriteJSON(msg)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			logging.Debug().Err(err).Str("component", "websocket").Uint64("client_id", c.id).Msg("Websocket write failed")
			return
		}
	}
}

// Start registers the client and starts its pumps. It fails, closing the
// connection, when ctx ends before the hub accepts the client.
func (c *Client) Start(ctx context.Context) error {
	select {
	case c.hub.Register <- c:
	case <-ctx.Done():
		_ = c.conn.Close()
		return ctx.Err()
	}
	go c.writePump()
	go c.readPump()
	return nil
}
