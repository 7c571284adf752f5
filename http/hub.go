package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/sitemapgen"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outgoing messages buffered per client before it is dropped.
	sendBufferSize = 256
)

// Hub-originated message types.
const (
	messageConnected  = "connected"
	messageSubscribed = "subscribed"
	messagePong       = "pong"
)

var _ sitemapgen.JobNotifier = (*Hub)(nil)

// clientMessage is a request sent by a WebSocket client.
type clientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId,omitempty"`
}

// hubMessage is a reply sent by the hub itself.
type hubMessage struct {
	Type      string     `json:"type"`
	JobID     string     `json:"jobId,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Hub tracks WebSocket clients and delivers job messages to the clients
// subscribed to that job. Each client follows at most one job at a time.
type Hub struct {
	Logger *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.Mutex
	jobID string
}

// NewHub returns a hub that accepts connections from any origin.
func NewHub() *Hub {
	return &Hub{
		Logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade", "err", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	now := time.Now().UTC()
	c.reply(hubMessage{Type: messageConnected, Timestamp: &now})

	go c.writePump()
	c.readPump()
}

// Notify sends msg to every client subscribed to msg.JobID. Clients whose
// buffers are full are disconnected.
func (h *Hub) Notify(msg *sitemapgen.JobMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.Logger.Error("marshal job message", "jobId", msg.JobID, "err", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if c.subscription() != msg.JobID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.Logger.Warn("dropping slow websocket client", "jobId", msg.JobID)
		h.unregister(c)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.Logger.Debug("websocket client connected", "clients", len(h.clients))
	return true
}

// unregister removes c and closes its send channel, which stops the write
// pump and closes the connection.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.Logger.Debug("websocket client disconnected", "clients", len(h.clients))
	}
}

func (c *client) subscription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

func (c *client) subscribe(jobID string) {
	c.mu.Lock()
	c.jobID = jobID
	c.mu.Unlock()
}

// reply queues a hub message for c. Must be called while c is registered
// or from its read pump.
func (c *client) reply(msg hubMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump handles client requests until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Warn("websocket read", "err", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.Logger.Debug("invalid websocket message", "err", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.JobID == "" {
				continue
			}
			c.subscribe(msg.JobID)
			c.reply(hubMessage{Type: messageSubscribed, JobID: msg.JobID})
		case "ping":
			c.reply(hubMessage{Type: messagePong})
		}
	}
}

// writePump writes queued messages, one frame each, and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
