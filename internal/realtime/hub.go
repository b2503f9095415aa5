package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/metrics"
)

// Hub routes live events to connections through named rooms. Room keys are
// opaque strings; see PersonalRoom and ConversationRoom for the two kinds
// used by this service. The hub and its registry are process-wide singletons
// holding no durable state; persistence is the correctness-bearing channel
// and everything here is best-effort.
type Hub struct {
	registry *Registry
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	sender MessageSender // set after construction; nil drops send-message frames
}

// NewHub creates a hub over the given registry.
func NewHub(registry *Registry, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		log:      log.With().Str("component", "hub").Logger(),
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
	}
}

// SetMessageSender wires the chat pipeline in. Must be called before any
// client connects; the hub silently drops inbound messages otherwise.
func (h *Hub) SetMessageSender(s MessageSender) {
	h.sender = s
}

// Registry exposes the presence registry for handlers and tests.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// register adds a connection to the hub and the presence registry.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.registry.Register(c.id)
	metrics.WebsocketConnections.Inc()
}

// announce attaches the connection to its user, joins the personal room and
// re-broadcasts the online-teacher snapshot when it changed.
func (h *Hub) announce(c *Client, userID uuid.UUID, role string) {
	if userID == uuid.Nil {
		h.log.Warn().Str("conn", c.id).Msg("announce without user id ignored")
		return
	}

	teachersChanged := h.registry.Announce(c.id, userID, role)
	c.userID = userID
	h.joinRoom(c, PersonalRoom(userID))

	h.log.Debug().Str("conn", c.id).Stringer("user", userID).Str("role", role).Msg("connection announced")

	if teachersChanged {
		h.broadcastTeachers()
	}
}

// disconnect removes the connection from every room it holds and from the
// registry. O(rooms held by the connection), not O(all connections).
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	close(c.send)
	h.mu.Unlock()

	_, teachersChanged := h.registry.Disconnect(c.id)
	metrics.WebsocketConnections.Dec()

	if teachersChanged {
		h.broadcastTeachers()
	}
}

// joinRoom adds the connection to a room.
func (h *Hub) joinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// leaveRoom removes the connection from a room. Leaving a room the
// connection never joined is a no-op.
func (h *Hub) leaveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, room)
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(c *Client, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// broadcastTeachers emits the full online-teacher snapshot to every
// connection. Emitting the same set twice is harmless; consumers replace,
// never merge.
func (h *Hub) broadcastTeachers() {
	h.Broadcast(EventTeachersUpdated, h.registry.OnlineTeachers())
}

// DeliverToUsers pushes an event to every connection in each user's
// personal room. Users with no live connection receive nothing.
func (h *Hub) DeliverToUsers(userIDs []uuid.UUID, event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal live event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range userIDs {
		for c := range h.rooms[PersonalRoom(id)] {
			h.push(c, event, frame)
		}
	}
}

// DeliverToConversation pushes to the conversation room and to the personal
// rooms of every participant except excludeUserID. A connection reachable
// through both channels gets the event once.
func (h *Hub) DeliverToConversation(conversationID uuid.UUID, participants []uuid.UUID, excludeUserID uuid.UUID, event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal live event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]struct{})
	for c := range h.rooms[ConversationRoom(conversationID)] {
		targets[c] = struct{}{}
	}
	for _, id := range participants {
		if id == excludeUserID {
			continue
		}
		for c := range h.rooms[PersonalRoom(id)] {
			targets[c] = struct{}{}
		}
	}
	for c := range targets {
		h.push(c, event, frame)
	}
}

// Broadcast pushes an event to every open connection.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal live event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.push(c, event, frame)
	}
}

// IsUserInRoom reports whether any of the user's connections sit in the room.
func (h *Hub) IsUserInRoom(userID uuid.UUID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// push queues a frame on one connection. A slow or closed consumer is
// dropped rather than blocking delivery; the durable record remains the
// source of truth for whatever it missed.
func (h *Hub) push(c *Client, event string, frame []byte) {
	select {
	case c.send <- frame:
		metrics.LiveEventsDelivered.WithLabelValues(event).Inc()
	default:
		metrics.LiveEventsDropped.Inc()
		h.log.Warn().Str("conn", c.id).Str("event", event).Msg("send queue full, dropping event")
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
