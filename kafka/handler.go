package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"supportdesk/realtime"
)

// Handler processes one consumed record.
type Handler interface {
	Handle(ctx context.Context, message *sarama.ConsumerMessage) error
}

// EventHandler re-injects events produced by other server instances into
// the local hub, so a console connected to this instance still sees
// mutations performed elsewhere. Events this instance produced itself are
// skipped; local subscribers already received them.
type EventHandler struct {
	hub    *realtime.Hub
	origin string
}

func NewEventHandler(hub *realtime.Hub, origin string) *EventHandler {
	return &EventHandler{hub: hub, origin: origin}
}

func (h *EventHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var ev realtime.Event
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		log.Printf("Failed to unmarshal event: %v", err)
		return err
	}
	if ev.Origin == h.origin {
		return nil
	}
	h.hub.Publish(ev)
	return nil
}
