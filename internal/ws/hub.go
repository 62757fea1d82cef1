package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GamjaUnni/nicecatch-backend/internal/metrics"
)

// Hub tracks live connections and which room channel each one is tagged to.
// It implements relay.Emitter: recipients are resolved under the lock and
// frames are delivered after it is released, so a slow peer never stalls
// the maps.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // roomID -> connID -> client

	log           *zap.SugaredLogger
	enableMetrics bool
}

func NewHub(log *zap.SugaredLogger, enableMetrics bool) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		rooms:         make(map[string]map[string]*Client),
		log:           log,
		enableMetrics: enableMetrics,
	}
}

// Register adds a freshly upgraded connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	connCount := len(h.clients)
	h.mu.Unlock()

	if h.enableMetrics {
		metrics.Connections.Set(float64(connCount))
	}
}

// Tag marks a connection as a member of a room channel.
func (h *Hub) Tag(connID, roomID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[string]*Client)
		}
		h.rooms[roomID][connID] = c
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	if h.enableMetrics {
		metrics.Rooms.Set(float64(roomCount))
	}
}

// Unregister drops the connection and any room tag it holds.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	for roomID, members := range h.rooms {
		if _, tagged := members[connID]; tagged {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
			break
		}
	}
	connCount := len(h.clients)
	roomCount := len(h.rooms)
	h.mu.Unlock()

	if ok {
		c.close()
	}
	if h.enableMetrics {
		metrics.Connections.Set(float64(connCount))
		metrics.Rooms.Set(float64(roomCount))
	}
}

// Unicast delivers one frame to one connection. Unknown connections and
// full buffers drop the frame; delivery is fire and forget.
func (h *Hub) Unicast(connID string, frame []byte) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !c.enqueue(frame) {
		h.log.Warnw("dropping frame for slow or closed client", "conn", connID)
	}
}

// BroadcastExcept delivers one frame to every connection tagged to roomID
// except senderID.
func (h *Hub) BroadcastExcept(roomID, senderID string, frame []byte) {
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[roomID]))
	for connID, c := range h.rooms[roomID] {
		if connID != senderID {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		if !c.enqueue(frame) {
			h.log.Warnw("dropping frame for slow or closed client", "conn", c.id, "room", roomID)
		}
	}
}
