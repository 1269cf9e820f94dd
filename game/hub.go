package game

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Hub tracks live connections and which room each one is watching.
// Broadcasts only enqueue onto per-client buffered channels, so they
// are safe to call from inside a registry-locked section; a client
// that cannot keep up has messages dropped rather than stalling the
// room.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client            // socketID -> client
	rooms   map[string]map[string]*Client // roomCode -> socketID -> client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.SocketID] = c
}

// Remove detaches the client and returns the room it was watching, if
// any, so the caller can run the leave flow against the registry.
func (h *Hub) Remove(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.SocketID)
	code := c.roomCode
	c.roomCode = ""
	if code != "" {
		if members, ok := h.rooms[code]; ok {
			delete(members, c.SocketID)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	return code
}

// Watch subscribes the client to a room's broadcasts, replacing any
// previous subscription.
func (h *Hub) Watch(c *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.roomCode != "" && c.roomCode != code {
		if members, ok := h.rooms[c.roomCode]; ok {
			delete(members, c.SocketID)
			if len(members) == 0 {
				delete(h.rooms, c.roomCode)
			}
		}
	}
	c.roomCode = code
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[string]*Client)
	}
	h.rooms[code][c.SocketID] = c
}

func (h *Hub) Unwatch(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.roomCode == "" {
		return
	}
	if members, ok := h.rooms[c.roomCode]; ok {
		delete(members, c.SocketID)
		if len(members) == 0 {
			delete(h.rooms, c.roomCode)
		}
	}
	c.roomCode = ""
}

type serverEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Hub) Broadcast(code, event string, payload any) {
	data, err := json.Marshal(serverEvent{Type: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("broadcast marshal failed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[code] {
		c.enqueue(data)
	}
}

// SendTo delivers an event to a single connection (stage-plan updates
// go only to the host).
func (h *Hub) SendTo(socketID, event string, payload any) {
	data, err := json.Marshal(serverEvent{Type: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("send marshal failed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[socketID]; ok {
		c.enqueue(data)
	}
}
