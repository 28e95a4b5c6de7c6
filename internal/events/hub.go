// Package events fans store mutations out to the connected clients of a user.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types.
const (
	SessionCreated = "session.created"
	SessionRenamed = "session.renamed"
	SessionDeleted = "session.deleted"
	MessageCreated = "message.created"
	WebhookSaved   = "webhook.saved"
	WebhookTest    = "webhook.test"
)

// Event is one notification pushed to subscribers.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher is what services need to announce changes.
type Publisher interface {
	Publish(userID uuid.UUID, eventType string, data any)
}

// Subscription receives a single user's events until closed.
type Subscription struct {
	ID     uuid.UUID
	UserID uuid.UUID
	ch     chan Event
	hub    *Hub
	once   sync.Once
}

// C is the event stream. It is closed by Close.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

// Hub manages per-user subscriptions.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[uuid.UUID]*Subscription
	buffer int
	log    *zap.Logger
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[uuid.UUID]*Subscription),
		buffer: buffer,
		log:    logger.Named("events"),
	}
}

// Subscribe registers a new subscriber for userID.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{ID: uuid.New(), UserID: userID, ch: make(chan Event, h.buffer), hub: h}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uuid.UUID]*Subscription)
	}
	h.subs[userID][sub.ID] = sub
	h.mu.Unlock()
	h.log.Debug("subscribed", zap.String("user_id", userID.String()), zap.String("subscription_id", sub.ID.String()))
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userSubs, ok := h.subs[sub.UserID]; ok {
		delete(userSubs, sub.ID)
		if len(userSubs) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
	close(sub.ch)
}

// Publish delivers an event to every subscriber of userID. A subscriber whose
// buffer is full misses the event rather than blocking the publisher.
func (h *Hub) Publish(userID uuid.UUID, eventType string, data any) {
	evt := Event{Type: eventType, Data: data, At: time.Now().UTC()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[userID] {
		select {
		case sub.ch <- evt:
		default:
			h.log.Warn("dropping event for slow subscriber",
				zap.String("user_id", userID.String()),
				zap.String("subscription_id", sub.ID.String()),
				zap.String("type", eventType))
		}
	}
}

// Subscribers reports how many subscriptions userID has.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(uuid.UUID, string, any) {}
