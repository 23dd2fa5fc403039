// Package realtime streams ingested campaign events to connected dashboards
// over WebSocket, one room per tenant, bridged across instances with Redis
// pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// EventCampaignActivity is the message type for ingested campaign events.
const EventCampaignActivity = "campaign_event"

// RedisPublisher publishes to a tenant's channel for cross-instance fanout.
type RedisPublisher interface {
	PublishTenantEvent(tenantID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to a tenant's channel and invokes handler for
// incoming messages.
type RedisSubscriber interface {
	SubscribeTenant(tenantID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains tenant_id -> set of connections and fans events out to them.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redisPub RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a WebSocket hub. Both Redis sides may be nil for
// single-instance deployments.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redisPub: redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its tenant room, starting the Redis subscription
// when it is the room's first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.TenantID] == nil {
		h.rooms[c.TenantID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeTenant(c.TenantID, func(event string, payload []byte) {
				h.broadcast(c.TenantID, event, payload)
			})
			if err == nil {
				h.subs[c.TenantID] = cancel
			}
		}
	}
	h.rooms[c.TenantID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("feed client connected",
		zap.String("client_id", c.ID),
		zap.String("tenant_id", c.TenantID.String()))
}

// Unregister removes a client, cancelling the Redis subscription when the
// room empties.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.TenantID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.TenantID)
			if cancel, ok := h.subs[c.TenantID]; ok {
				cancel()
				delete(h.subs, c.TenantID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("feed client disconnected",
		zap.String("client_id", c.ID),
		zap.String("tenant_id", c.TenantID.String()))
}

// broadcast delivers a message to the local clients of one tenant room.
// Slow consumers are skipped rather than blocking the fanout.
func (h *Hub) broadcast(tenantID uuid.UUID, event string, payload []byte) {
	msg := WSMessage{Event: event, Data: payload}

	h.mu.RLock()
	clients := h.rooms[tenantID]
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// PublishEvent fans a persisted event out to the tenant's feed. With Redis
// configured the message goes through pub/sub only, so every instance
// (including this one) delivers it exactly once; without Redis it is
// broadcast locally.
func (h *Hub) PublishEvent(_ context.Context, e *models.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if h.redisPub != nil {
		if err := h.redisPub.PublishTenantEvent(e.TenantID, EventCampaignActivity, payload); err != nil {
			h.logger.Warn("feed publish failed",
				zap.String("tenant_id", e.TenantID.String()),
				zap.Error(err))
		}
		return
	}
	h.broadcast(e.TenantID, EventCampaignActivity, payload)
}

// ClientCount returns the number of connected clients for a tenant.
func (h *Hub) ClientCount(tenantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tenantID])
}
