package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// EventInterceptor stamps every produced event with the wall-clock produce
// time so downstream consumers can measure fan-out lag.
type EventInterceptor struct{}

func NewEventInterceptor() *EventInterceptor {
	return &EventInterceptor{}
}

func (i *EventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("produced-at"),
		Value: []byte(time.Now().UTC().Format(time.RFC3339Nano)),
	})
}
