package realtime

import (
	"log/slog"
	"sync"
)

// Conn is the slice of a websocket connection the hub needs. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Envelope wraps every pushed payload with its event name.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Hub is the process-wide registry of connected users. It is not
// authoritative: an entry may be stale, and a push to a gone connection is
// simply reported as undelivered.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]Conn
	log   *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[int64]Conn),
		log:   log,
	}
}

// Register binds a user to a connection, replacing and closing any previous
// one. A user has at most one live connection.
func (h *Hub) Register(userID int64, c Conn) {
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = c
	h.mu.Unlock()

	if prev != nil && prev != c {
		_ = prev.Close()
	}
	h.log.Info("user connected", "user_id", userID)
}

// Unregister removes the user's entry if it still points at c.
func (h *Hub) Unregister(userID int64, c Conn) {
	h.mu.Lock()
	if h.conns[userID] == c {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
	h.log.Info("user disconnected", "user_id", userID)
}

// ConnectedUserIDs snapshots the users currently reachable for push.
func (h *Hub) ConnectedUserIDs() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

// PushToUser delivers an event to the user if connected. Returns whether the
// payload was written; a write failure drops the connection from the
// registry so later pushes skip it.
func (h *Hub) PushToUser(userID int64, event string, payload any) bool {
	h.mu.RLock()
	c, ok := h.conns[userID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	if err := c.WriteJSON(Envelope{Event: event, Payload: payload}); err != nil {
		h.log.Warn("push failed, dropping connection", "user_id", userID, "event", event, "error", err)
		h.Unregister(userID, c)
		_ = c.Close()
		return false
	}
	return true
}
