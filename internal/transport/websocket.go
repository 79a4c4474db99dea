// ABOUTME: Websocket implementation of the Channel with automatic reconnection.
// ABOUTME: Read/write pumps with ping keepalive; degrades after retry exhaustion.

package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 65536
	sendBufferSize = 256
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnected
	stateDegraded
)

// Options configures the reconnection policy.
type Options struct {
	// ReconnectAttempts is the number of dial attempts before giving up.
	ReconnectAttempts int
	// ReconnectDelay is the fixed backoff between attempts.
	ReconnectDelay time.Duration
}

// WebsocketChannel is the production Channel: one websocket connection
// with read/write pumps, handler fan-out, and bounded reconnection.
type WebsocketChannel struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.RWMutex
	conn     *websocket.Conn
	state    connState
	closing  bool
	send     chan []byte
	handlers map[string]map[string]Handler
	degraded []func()
}

// NewWebsocketChannel creates a channel for the given ws:// or wss://
// URL. Zero-valued options fall back to 5 attempts at 1s.
func NewWebsocketChannel(url string, opts Options, logger *slog.Logger) *WebsocketChannel {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketChannel{
		url:      url,
		opts:     opts,
		dialer:   websocket.DefaultDialer,
		logger:   logger.With("component", "channel"),
		handlers: make(map[string]map[string]Handler),
	}
}

var _ Channel = (*WebsocketChannel)(nil)

// Connect dials the server, retrying per the reconnection policy.
// Reusing an already-open channel is a no-op.
func (c *WebsocketChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateConnected {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.state = stateDisconnected
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.markDegraded()
		return err
	}

	c.startSession(conn)
	c.logger.Info("channel connected", "url", c.url)
	return nil
}

// dial attempts the websocket handshake up to ReconnectAttempts times
// with a fixed delay between attempts.
func (c *WebsocketChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("channel dial failed",
			"attempt", attempt,
			"max_attempts", c.opts.ReconnectAttempts,
			"error", err,
		)
		if attempt == c.opts.ReconnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
	return nil, lastErr
}

// startSession installs a live connection and starts its pumps.
func (c *WebsocketChannel) startSession(conn *websocket.Conn) {
	done := make(chan struct{})
	send := make(chan []byte, sendBufferSize)

	c.mu.Lock()
	c.conn = conn
	c.send = send
	c.state = stateConnected
	c.mu.Unlock()

	go c.writePump(conn, send, done)
	go c.readPump(conn, done)
}

// Disconnect closes the connection. Handlers stay registered so a later
// Connect resumes dispatch; disconnecting twice is a no-op.
func (c *WebsocketChannel) Disconnect() {
	c.mu.Lock()
	if c.conn == nil {
		c.state = stateDisconnected
		c.mu.Unlock()
		return
	}
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.state = stateDisconnected
	c.mu.Unlock()

	_ = conn.Close()
	c.logger.Info("channel disconnected")
}

// Emit sends one event over the channel. Drops silently when the
// channel is not connected (degraded mode) or the send buffer is full.
func (c *WebsocketChannel) Emit(event string, payload any) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		c.logger.Error("dropping unencodable event", "event", event, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("dropping unencodable event", "event", event, "error", err)
		return
	}

	c.mu.RLock()
	state := c.state
	send := c.send
	c.mu.RUnlock()

	if state != stateConnected {
		c.logger.Debug("emit dropped, channel not connected", "event", event)
		return
	}

	select {
	case send <- data:
	default:
		c.logger.Warn("emit dropped, send buffer full", "event", event)
	}
}

// On registers a handler for an event and returns its registration id.
func (c *WebsocketChannel) On(event string, h Handler) string {
	id := uuid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[event]; !ok {
		c.handlers[event] = make(map[string]Handler)
	}
	c.handlers[event][id] = h
	return id
}

// Off removes a handler registration. No further callbacks fire for it
// once Off returns.
func (c *WebsocketChannel) Off(event string, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hs, ok := c.handlers[event]
	if !ok {
		return
	}
	delete(hs, id)
	if len(hs) == 0 {
		delete(c.handlers, event)
	}
}

// NotifyDegraded registers a callback for reconnect exhaustion.
func (c *WebsocketChannel) NotifyDegraded(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degraded = append(c.degraded, fn)
}

// Connected reports whether the connection is live.
func (c *WebsocketChannel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateConnected
}

// readPump consumes inbound frames and dispatches them until the
// connection fails or is closed locally.
func (c *WebsocketChannel) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("channel read error", "error", err)
			}
			break
		}
		c.dispatch(data)
	}

	c.mu.Lock()
	closing := c.closing
	if c.conn == conn {
		c.conn = nil
		c.state = stateDisconnected
	}
	c.mu.Unlock()

	if !closing {
		go c.reconnect()
	}
}

// writePump serializes outbound frames and keeps the connection alive
// with pings. It owns all writes to the connection.
func (c *WebsocketChannel) writePump(conn *websocket.Conn, send chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// reconnect re-dials after an unexpected drop. On exhaustion the channel
// degrades and the degrade callbacks fire.
func (c *WebsocketChannel) reconnect() {
	conn, err := c.dial(context.Background())
	if err != nil {
		c.logger.Error("channel reconnect exhausted", "error", err)
		c.markDegraded()
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.mu.Unlock()

	c.startSession(conn)
	c.logger.Info("channel reconnected", "url", c.url)
}

// markDegraded flips the channel into degraded mode and notifies.
func (c *WebsocketChannel) markDegraded() {
	c.mu.Lock()
	if c.state == stateDegraded {
		c.mu.Unlock()
		return
	}
	c.state = stateDegraded
	callbacks := make([]func(), len(c.degraded))
	copy(callbacks, c.degraded)
	c.mu.Unlock()

	for _, fn := range callbacks {
		c.safeCall(func(json.RawMessage) { fn() }, nil, "degraded")
	}
}

// dispatch decodes one inbound frame and fans it out to handlers.
// Malformed frames are dropped; a panicking handler never blocks the
// remaining handlers or later events.
func (c *WebsocketChannel) dispatch(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		c.logger.Warn("dropping malformed event", "error", err)
		return
	}

	c.mu.RLock()
	hs, ok := c.handlers[env.Event]
	if !ok || len(hs) == 0 {
		c.mu.RUnlock()
		return
	}
	targets := make([]Handler, 0, len(hs))
	for _, h := range hs {
		targets = append(targets, h)
	}
	c.mu.RUnlock()

	for _, h := range targets {
		c.safeCall(h, env.Data, env.Event)
	}
}

// safeCall invokes a handler, recovering panics so one bad handler
// cannot terminate the session.
func (c *WebsocketChannel) safeCall(h Handler, data json.RawMessage, event string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic recovered", "event", event, "panic", r)
		}
	}()
	h(data)
}
