package broadcast

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Room lifecycle event names carried on the wire.
const (
	EventGameStarted = "game-started"
	EventNewRound    = "new-round"
	EventNewsUpdate  = "news-update"
	EventPriceUpdate = "price-update"
	EventGameOver    = "game-over"
)

// Message is one broadcast frame.
type Message struct {
	Event   string `json:"event"`
	RoomID  string `json:"room_id"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster is the channel the game engine publishes room events on.
type Broadcaster interface {
	Broadcast(roomID, event string, payload any)
}

// Hub fans room events out to every websocket subscriber of that room.
// Publishing never blocks: a subscriber that cannot keep up is dropped.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
	log   *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

const sendBuffer = 32

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		log:   logger,
	}
}

// Subscribe registers a websocket connection for a room's events and
// takes ownership of the connection until it closes.
func (h *Hub) Subscribe(roomID string, conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	h.mu.Lock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*client]struct{})
		h.rooms[roomID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(roomID, c)
}

func (h *Hub) Broadcast(roomID, event string, payload any) {
	msg := Message{Event: event, RoomID: roomID, Payload: payload}
	h.mu.Lock()
	var slow []*client
	for c := range h.rooms[roomID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.dropLocked(roomID, c)
	}
	h.mu.Unlock()
	if len(slow) > 0 {
		h.log.Warn("dropped slow subscribers", "room_id", roomID, "count", len(slow))
	}
}

// Subscribers reports the number of live connections for a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

func (h *Hub) drop(roomID string, c *client) {
	h.mu.Lock()
	h.dropLocked(roomID, c)
	h.mu.Unlock()
}

// dropLocked must be called with h.mu held. Closing c.send ends the
// write loop, which closes the connection.
func (h *Hub) dropLocked(roomID string, c *client) {
	set, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
	close(c.send)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readLoop discards client frames; subscribers are listen-only. Its real
// job is noticing the peer went away.
func (h *Hub) readLoop(roomID string, c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(roomID, c)
			return
		}
	}
}
