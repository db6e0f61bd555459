package kafka

import (
	"log"
	"strconv"

	"github.com/google/uuid"

	"supportdesk/metrics"
	"supportdesk/realtime"
)

// Relay decorates the in-process hub with durable export: every published
// event also goes to the chat-events topic so other server instances (via
// EventHandler) and external consumers see it. Events are tagged with this
// instance's origin id so the consumer side can skip its own traffic.
type Relay struct {
	hub      *realtime.Hub
	producer *Producer
	topic    string
	origin   string
}

func NewRelay(hub *realtime.Hub, producer *Producer, topic string) *Relay {
	return &Relay{
		hub:      hub,
		producer: producer,
		topic:    topic,
		origin:   uuid.New().String(),
	}
}

func (r *Relay) Origin() string {
	return r.origin
}

func (r *Relay) Publish(ev realtime.Event) {
	ev.Origin = r.origin
	r.hub.Publish(ev)
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	key := strconv.FormatUint(uint64(ev.RoomID), 10)
	if err := r.producer.SendMessage(r.topic, key, ev); err != nil {
		// The store already accepted the mutation; local consoles got the
		// event through the hub. Remote consoles resync on reconnect.
		log.Printf("event export failed: %v", err)
	}
}
