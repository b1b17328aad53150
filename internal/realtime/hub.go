package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// AudienceChangeHandler is called when the viewer count changes for an event.
type AudienceChangeHandler func(eventID uuid.UUID, count int)

// Hub maintains event_id -> set of connections and broadcasts messages: the
// rolling draw frames, committed winners, check-in arrivals and session
// countdowns all flow through here. Uses Redis pub/sub for horizontal
// scaling: local broadcast + publish to Redis.
type Hub struct {
	// eventID -> map[clientID]*Client
	events     map[uuid.UUID]map[string]*Client
	subs       map[uuid.UUID]func() // cancel Redis subscription per event
	mu         sync.RWMutex
	logger     *zap.Logger
	redis      RedisPublisher
	redisSub   RedisSubscriber
	onAudience AudienceChangeHandler
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEvent(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		events:   make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetAudienceChangeHandler sets the callback for viewer count changes.
func (h *Hub) SetAudienceChangeHandler(fn AudienceChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAudience = fn
}

// Register adds a client to an event room. Starts the Redis subscription for
// this event if it is the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.events[c.EventID] == nil {
		h.events[c.EventID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeEvent(c.EventID, func(event string, payload []byte) {
				h.BroadcastToEvent(c.EventID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.EventID] = cancel
			}
		}
	}
	h.events[c.EventID][c.ID] = c
	count := len(h.events[c.EventID])
	onAudience := h.onAudience
	h.mu.Unlock()
	if onAudience != nil {
		onAudience(c.EventID, count)
	}
	h.logger.Debug("client joined event", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client from an event room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.events[c.EventID]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.events, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	onAudience := h.onAudience
	h.mu.Unlock()
	if onAudience != nil && count > 0 {
		onAudience(c.EventID, count)
	}
	h.logger.Debug("client left event", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// BroadcastToEvent sends a message to all clients in an event (local only).
func (h *Hub) BroadcastToEvent(eventID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.events[eventID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToEventAndPublish sends to local clients and publishes to Redis
// for other instances.
func (h *Hub) BroadcastToEventAndPublish(eventID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToEvent(eventID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishEvent(eventID, event, data)
	}
}

// AudienceCount returns the number of connected clients in an event.
func (h *Hub) AudienceCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}

// EventBroadcaster is a Hub bound to one event, satisfying the
// single-channel broadcaster interfaces of the draw and check-in packages.
type EventBroadcaster struct {
	hub     *Hub
	eventID uuid.UUID
}

// Broadcaster returns a publisher bound to one event's channel.
func (h *Hub) Broadcaster(eventID uuid.UUID) *EventBroadcaster {
	return &EventBroadcaster{hub: h, eventID: eventID}
}

// Publish broadcasts to the bound event locally and across instances.
func (b *EventBroadcaster) Publish(event string, payload interface{}) {
	b.hub.BroadcastToEventAndPublish(b.eventID, event, payload)
}
