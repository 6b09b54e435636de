package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"inkwell/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user across all rooms
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// PresenceHub tracks which viewers are currently active on each post's room.
// The room key is the post ID by convention; it is shared state between this
// process and any peer instances wired through Redis pub/sub, not a lock.
type PresenceHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*Client]struct{}
	perUser    map[uint]int
	totalConns int
	shutdown   chan struct{}
	done       chan struct{}
}

// NewPresenceHub creates a new PresenceHub instance.
func NewPresenceHub() *PresenceHub {
	return &PresenceHub{
		rooms:    make(map[uint]map[*Client]struct{}),
		perUser:  make(map[uint]int),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *PresenceHub) Name() string { return "presence hub" }

// rosterEvent is the payload broadcast to a room whenever its roster changes.
type rosterEvent struct {
	Type    string `json:"type"`
	RoomID  uint   `json:"room_id"`
	Viewers []uint `json:"viewers"`
}

// Register adds a connection for userID to the given post room.
// Returns the Client or an error if connection limits are exceeded.
func (h *PresenceHub) Register(roomID, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}
	if h.perUser[userID] >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	m, ok := h.rooms[roomID]
	if !ok {
		m = make(map[*Client]struct{})
		h.rooms[roomID] = m
	}

	client := NewClient(h, conn, userID, roomID)
	m[client] = struct{}{}
	h.perUser[userID]++
	h.totalConns++
	h.mu.Unlock()

	middleware.PresenceRoomConnections.WithLabelValues(strconv.FormatUint(uint64(roomID), 10)).Inc()
	h.broadcastRoster(roomID)

	return client, nil
}

// UnregisterClient removes a connection and broadcasts the updated roster.
func (h *PresenceHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.rooms[client.RoomID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
			if h.perUser[client.UserID] > 0 {
				h.perUser[client.UserID]--
			}
		}
		if len(m) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
	h.mu.Unlock()

	if removed {
		middleware.PresenceRoomConnections.WithLabelValues(strconv.FormatUint(uint64(client.RoomID), 10)).Dec()
		h.broadcastRoster(client.RoomID)
	}
}

// Roster returns the distinct viewer IDs currently present in a room.
func (h *PresenceHub) Roster(roomID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uint]struct{})
	var viewers []uint
	for c := range h.rooms[roomID] {
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}
		viewers = append(viewers, c.UserID)
	}
	return viewers
}

// BroadcastRoom sends a payload to every connection in a room.
func (h *PresenceHub) BroadcastRoom(roomID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.TrySend(payload)
	}
}

func (h *PresenceHub) broadcastRoster(roomID uint) {
	event := rosterEvent{
		Type:    "presence",
		RoomID:  roomID,
		Viewers: h.Roster(roomID),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.BroadcastRoom(roomID, payload)
}

// StartWiring connects the Notifier to this hub: presence payloads published
// by peer instances are forwarded to local room connections.
func (h *PresenceHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		var roomID uint
		if _, err := fmt.Sscanf(channel, "presence:room:%d", &roomID); err != nil {
			return
		}
		h.BroadcastRoom(roomID, []byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections
func (h *PresenceHub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	h.mu.Lock()
	for roomID, clients := range h.rooms {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for room %d: %v", roomID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for room %d: %v", roomID, err)
			}
		}
	}
	h.rooms = make(map[uint]map[*Client]struct{})
	h.perUser = make(map[uint]int)
	h.totalConns = 0
	h.mu.Unlock()

	close(h.done)
	return nil
}
