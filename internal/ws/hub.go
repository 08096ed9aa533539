package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub keeps one room of clients per lot. A room is dropped when its last
// client leaves.
type Hub struct {
	mu    sync.Mutex
	rooms map[int64]map[*clientConn]struct{}
}

func NewHub() *Hub { return &Hub{rooms: map[int64]map[*clientConn]struct{}{}} }

func (h *Hub) Join(lotID int64, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[lotID]
	if !ok {
		r = map[*clientConn]struct{}{}
		h.rooms[lotID] = r
	}
	r[c] = struct{}{}
}

// Leave removes c from the lot's room and closes it. It reports whether c
// was still a member, so callers release per-client state exactly once.
func (h *Hub) Leave(lotID int64, c *clientConn) bool {
	h.mu.Lock()
	r := h.rooms[lotID]
	_, member := r[c]
	delete(r, c)
	if member && len(r) == 0 {
		delete(h.rooms, lotID)
	}
	h.mu.Unlock()

	_ = c.rawConn.Close()
	return member
}

// Size is the number of clients in the lot's room.
func (h *Hub) Size(lotID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[lotID])
}

func (h *Hub) members(lotID int64) []*clientConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[lotID]
	conns := make([]*clientConn, 0, len(r))
	for c := range r {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast writes msg to every client of the lot, outside the lock. A
// client whose write fails is closed; its reader then leaves the room.
func (h *Hub) Broadcast(lotID int64, msg []byte) {
	for _, c := range h.members(lotID) {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			_ = c.rawConn.Close()
		}
	}
}
