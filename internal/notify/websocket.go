package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts emitted events to connected websocket clients. A client
// that cannot keep up is dropped rather than back-pressuring the dispatcher.
type Hub struct {
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Notify(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			if h.logger != nil {
				h.logger.Debug("websocket write failed, dropping client", "err", err)
			}
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// ServeWS upgrades an HTTP request and registers the client. Reads are
// drained only to detect disconnects; the feed is one-way.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", "err", err)
		}
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.logger != nil {
		h.logger.Info("websocket client connected", "clients", count)
	}
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.mu.Lock()
		if h.clients[conn] {
			delete(h.clients, conn)
			conn.Close()
		}
		h.mu.Unlock()
	}()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
