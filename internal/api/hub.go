package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koi-labs/koi-ledger/internal/metrics"
	"github.com/koi-labs/koi-ledger/internal/model"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// Snapshotter produces the ledger view pushed to clients.
type Snapshotter interface {
	Snapshot() model.View
}

// Hub manages WebSocket connections and pushes a full ledger snapshot to
// every client whenever the ledger changes.
type Hub struct {
	src      Snapshotter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub reading snapshots from src.
func NewHub(src Snapshotter) *Hub {
	return &Hub{
		src:     src,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins during development.
			},
		},
	}
}

// Run pushes a snapshot to all clients for every signal received until ctx
// is done or signals is closed. Must be called in a goroutine.
func (h *Hub) Run(ctx context.Context, signals <-chan struct{}) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			data, err := h.encode()
			if err != nil {
				slog.Error("ws snapshot encode failed", "err", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(h.src.Snapshot())
}

// broadcast queues data to every client. A client whose queue is full is
// dropped rather than allowed to stall the others.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("ws client too slow, dropping", "remote", c.conn.RemoteAddr().String())
			h.removeLocked(c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
	slog.Info("ws client connected", "total", total)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketClients.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// HandleWS handles WebSocket upgrade requests at GET /ws. The client
// receives the current snapshot immediately, then one per change.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := h.encode(); err == nil {
		c.send <- data
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump keeps the connection alive and detects disconnects. Inbound
// messages are ignored.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection. It exits when the send
// queue is closed or a write fails.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}
