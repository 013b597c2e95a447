package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub tracks connected dashboard clients. Writes are serialized per client;
// a slow client is dropped rather than stalling the broadcast.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	s.hub.add(c)
	s.logger.Info("Dashboard client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Send the current state immediately so the dashboard renders without
	// waiting for the next push tick.
	c.send(s.snapshot(r.Context()))

	// Drain incoming frames so pings and close messages are processed.
	go func() {
		defer s.hub.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (h *hub) empty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) == 0
}

func (h *hub) broadcast(update map[string]any) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(update); err != nil {
			h.logger.Warn("Dropping dashboard client", zap.Error(err))
			h.remove(c)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

func (c *client) send(update map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(update)
}
