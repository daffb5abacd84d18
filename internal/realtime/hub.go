// Package realtime routes outbound frames to users' live connections.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	WriteText(payload []byte) error
	Close() error
}

// Hub maps user IDs to their live connections. A single mutex serializes
// every operation, including writes.
type Hub struct {
	mu     sync.Mutex
	conns  map[int64]map[string]Conn
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[int64]map[string]Conn),
		logger: slog.With("component", "realtime_hub"),
	}
}

// Connect registers conn for userID.
func (h *Hub) Connect(userID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[userID]
	if !ok {
		set = make(map[string]Conn)
		h.conns[userID] = set
	}
	set[conn.ID()] = conn

	h.logger.Info("connection registered", "user_id", userID, "conn_id", conn.ID(), "user_conns", len(set))
}

// Disconnect removes conn. The user entry is dropped with its last connection.
func (h *Hub) Disconnect(userID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(userID, conn.ID())
	h.logger.Info("connection removed", "user_id", userID, "conn_id", conn.ID())
}

func (h *Hub) removeLocked(userID int64, connID string) {
	set, ok := h.conns[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

// Send writes payload to every connection of userID and returns the number
// of successful writes. A failed connection is closed and removed; the
// user's other connections are kept.
func (h *Hub) Send(userID int64, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sendLocked(userID, payload)
}

func (h *Hub) sendLocked(userID int64, payload []byte) int {
	set := h.conns[userID]
	delivered := 0
	for id, conn := range set {
		if err := conn.WriteText(payload); err != nil {
			h.logger.Warn("write failed, dropping connection", "user_id", userID, "conn_id", id, "error", err)
			_ = conn.Close()
			h.removeLocked(userID, id)
			continue
		}
		delivered++
	}
	return delivered
}

// SendJSON marshals v and sends it to userID.
func (h *Hub) SendJSON(userID int64, v any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal frame: %w", err)
	}
	return h.Send(userID, payload), nil
}

// BroadcastToSet sends payload to each listed user and returns the number
// of users reached.
func (h *Hub) BroadcastToSet(userIDs []int64, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	reached := 0
	for _, id := range userIDs {
		if h.sendLocked(id, payload) > 0 {
			reached++
		}
	}
	return reached
}

// BroadcastAll sends payload to every connected user.
func (h *Hub) BroadcastAll(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	reached := 0
	for _, id := range h.onlineLocked() {
		if h.sendLocked(id, payload) > 0 {
			reached++
		}
	}
	return reached
}

// IsOnline reports whether userID has at least one live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns[userID]) > 0
}

// OnlineUsers returns the connected user IDs in ascending order.
func (h *Hub) OnlineUsers() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []int64 {
	ids := make([]int64, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ConnectionCount returns the number of live connections across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
