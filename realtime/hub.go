// Package realtime fans room and message mutations out to every console
// currently interested in a room or in the tenant-wide room list. Delivery
// is at-least-once and ordered within a room; a consumer that falls behind
// is disconnected and must resynchronize from the store.
package realtime

import (
	"sync"
	"time"

	"supportdesk/models"
)

type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventRoomCreated    EventType = "room.created"
	EventRoomUpdated    EventType = "room.updated"
)

// Event is the unit of fan-out. Room/Message snapshots are hints: a
// consumer receiving an aggregate event should refetch authoritative state
// rather than treat the payload as truth.
type Event struct {
	Type     EventType           `json:"type"`
	TenantID uint                `json:"tenant_id"`
	RoomID   uint                `json:"room_id"`
	Origin   string              `json:"origin,omitempty"`
	Room     *models.ChatRoom    `json:"room,omitempty"`
	Message  *models.ChatMessage `json:"message,omitempty"`
	At       time.Time           `json:"at"`
}

// Publisher is what the services see; the hub implements it directly and
// kafka.Relay decorates it with broker export.
type Publisher interface {
	Publish(ev Event)
}

const subscriptionBuffer = 256

// Subscription is one consumer's interest in a room or a tenant. Events()
// is closed when the consumer unsubscribes or falls too far behind; either
// way the consumer must resync against the store before trusting its view.
type Subscription struct {
	ch     chan Event
	hub    *Hub
	room   uint // 0 for tenant-scoped subscriptions
	tenant uint
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.hub.remove(s)
}

type Hub struct {
	mu         sync.RWMutex
	roomSubs   map[uint]map[*Subscription]struct{}
	tenantSubs map[uint]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{
		roomSubs:   make(map[uint]map[*Subscription]struct{}),
		tenantSubs: make(map[uint]map[*Subscription]struct{}),
	}
}

// SubscribeRoom registers interest in a single room's message stream.
func (h *Hub) SubscribeRoom(roomID uint) *Subscription {
	sub := &Subscription{ch: make(chan Event, subscriptionBuffer), hub: h, room: roomID}
	h.mu.Lock()
	if h.roomSubs[roomID] == nil {
		h.roomSubs[roomID] = make(map[*Subscription]struct{})
	}
	h.roomSubs[roomID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// SubscribeTenant registers interest in the tenant-wide aggregate channel
// backing queue and room-list views.
func (h *Hub) SubscribeTenant(tenantID uint) *Subscription {
	sub := &Subscription{ch: make(chan Event, subscriptionBuffer), hub: h, tenant: tenantID}
	h.mu.Lock()
	if h.tenantSubs[tenantID] == nil {
		h.tenantSubs[tenantID] = make(map[*Subscription]struct{})
	}
	h.tenantSubs[tenantID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers the event to the room channel and the tenant aggregate
// channel. Closing another consumer's subscription never blocks delivery
// to the rest.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	// Sends happen under the read lock so a subscription channel can never
	// be closed mid-send; remove() needs the write lock and therefore waits.
	var dropped []*Subscription
	h.mu.RLock()
	for sub := range h.roomSubs[ev.RoomID] {
		select {
		case sub.ch <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	for sub := range h.tenantSubs[ev.TenantID] {
		select {
		case sub.ch <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	// Slow consumers are dropped so one stuck console cannot stall the
	// room; the closed channel forces them to resync.
	for _, sub := range dropped {
		h.remove(sub)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.room != 0 {
		if subs, ok := h.roomSubs[sub.room]; ok {
			if _, present := subs[sub]; present {
				delete(subs, sub)
				close(sub.ch)
				if len(subs) == 0 {
					delete(h.roomSubs, sub.room)
				}
			}
		}
		return
	}
	if subs, ok := h.tenantSubs[sub.tenant]; ok {
		if _, present := subs[sub]; present {
			delete(subs, sub)
			close(sub.ch)
			if len(subs) == 0 {
				delete(h.tenantSubs, sub.tenant)
			}
		}
	}
}
