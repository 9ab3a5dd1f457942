package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-androidtv/internal/player"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeSnapshot    = "snapshot"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelPlayerState carries every player state change. Clients may instead
// subscribe to "player.state_changed:{entry_id}" for one player.
const ChannelPlayerState = "player.state_changed"

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 256

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// channelEntry splits a player channel into its entry ID. The bare channel
// yields an empty ID. ok is false for anything that is not a player channel.
func channelEntry(channel string) (entryID string, ok bool) {
	if channel == ChannelPlayerState {
		return "", true
	}
	id, found := strings.CutPrefix(channel, ChannelPlayerState+":")
	if !found || id == "" {
		return "", false
	}
	return id, true
}

// keepalive holds the connection deadlines derived from config.
type keepalive struct {
	ping     time.Duration
	writeMax time.Duration
	readMax  time.Duration
}

func newKeepalive(cfg config.WebSocketConfig) keepalive {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return keepalive{ping: ping, writeMax: pong, readMax: ping + pong}
}

// ── Hub ────────────────────────────────────────────────────────────

// Hub tracks WebSocket clients and fans player states out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	// states returns current player states for the snapshot sent after a
	// subscribe. Nil disables snapshots.
	states func() []player.State
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", client.subject, "clients", n)
}

// Unregister removes a client. The send channel is closed only by whoever
// removes the client from the map, so Run and the read pump never both
// close it.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "subject", client.subject, "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to clients subscribed to channel or to one of
// the extra channels. A client subscribed to several of them still receives
// the event once.
func (h *Hub) Broadcast(channel string, payload any, extra ...string) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	recipients := h.subscribers(append([]string{channel}, extra...))
	for _, client := range recipients {
		client.trySend(data)
	}
	if len(recipients) > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", len(recipients))
	}
}

// subscribers snapshots the clients subscribed to any of channels. The hub
// lock is released before client locks are taken.
func (h *Hub) subscribers(channels []string) []*WSClient {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	out := clients[:0]
	for _, client := range clients {
		if client.subscribedToAny(channels) {
			out = append(out, client)
		}
	}
	return out
}

// broadcastState relays a published player state to WebSocket clients.
func (s *Server) broadcastState(st player.State) {
	s.hub.Broadcast(ChannelPlayerState, st, ChannelPlayerState+":"+st.EntryID)
}

// ── Connection ─────────────────────────────────────────────────────

// WSClient is one WebSocket connection and its subscriptions.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// subject is the token subject the ticket was issued to, if any.
	subject string
}

// upgrader accepts any origin; CORS middleware has already run.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// With auth enabled, a ticket query parameter (from POST /ws-ticket) is
// required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var subject string
	if s.cfg.AuthEnabled {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		issued, ok := s.tickets.consume(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		subject = issued.subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       subject,
	}
	s.hub.Register(client)

	ka := newKeepalive(s.wsCfg)
	go client.writePump(ka)
	go client.readPump(ka, int64(s.wsCfg.MaxMessageSize))
}

// readPump handles client messages until the connection fails. Any message,
// as well as a pong, extends the read deadline.
func (c *WSClient) readPump(ka keepalive, maxSize int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(ka.readMax))
	}

	c.conn.SetReadLimit(maxSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		extend()
		c.handleMessage(data)
	}
}

// writePump drains the send channel and pings on an interval. It exits
// when the hub closes the channel or a write fails.
func (c *WSClient) writePump(ka keepalive) {
	ticker := time.NewTicker(ka.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // A failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(ka.writeMax))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ── Messages ───────────────────────────────────────────────────────

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		if channels, ok := c.updateSubscriptions(msg, true); ok {
			c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
			c.sendSnapshot(msg.ID, channels)
		}
	case WSTypeUnsubscribe:
		if channels, ok := c.updateSubscriptions(msg, false); ok {
			c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
		}
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions adds or removes the channels named in msg. Unknown
// channels reject the whole message.
func (c *WSClient) updateSubscriptions(msg WSMessage, add bool) ([]string, bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Channels) == 0 {
		c.sendError(msg.ID, "payload must list channels")
		return nil, false
	}
	for _, ch := range sub.Channels {
		if _, ok := channelEntry(ch); !ok {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return nil, false
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket subscriptions changed",
		"subject", c.subject, "channels", sub.Channels, "subscribe", add)
	return sub.Channels, true
}

// sendSnapshot sends the current state of every player covered by channels
// so a new subscriber does not wait for the next change.
func (c *WSClient) sendSnapshot(id string, channels []string) {
	if c.hub.states == nil {
		return
	}

	all := false
	wanted := make(map[string]bool, len(channels))
	for _, ch := range channels {
		entryID, _ := channelEntry(ch)
		if entryID == "" {
			all = true
		}
		wanted[entryID] = true
	}

	var states []player.State
	for _, st := range c.hub.states() {
		if all || wanted[st.EntryID] {
			states = append(states, st)
		}
	}
	if len(states) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeSnapshot,
		ID:        id,
		EventType: ChannelPlayerState,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   states,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data for the write pump. A full buffer drops the message;
// a channel closed during shutdown is ignored.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

// subscribedToAny reports whether the client holds any of channels.
func (c *WSClient) subscribedToAny(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; ok {
			return true
		}
	}
	return false
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
