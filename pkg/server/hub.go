package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// message is the envelope for everything pushed over the socket.
type message struct {
	Type   string `json:"type"`
	Client string `json:"client,omitempty"`
	Status any    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// client is one connected preview. Writes go through mu; gorilla
// connections allow a single concurrent writer.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// hub tracks connected clients by id.
type hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func newHub(log *slog.Logger) *hub {
	return &hub{log: log, clients: make(map[string]*client)}
}

func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{id: uuid.NewString(), conn: conn}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug("preview connected", "client", c.id)
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.conn.Close()
	h.log.Debug("preview disconnected", "client", c.id)
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends msg to every client, dropping the ones that fail.
func (h *hub) broadcast(msg message) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Warn("failed to send to preview", "client", c.id, "error", err)
			h.remove(c)
		}
	}
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.mu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		c.mu.Unlock()
		c.conn.Close()
	}
}
