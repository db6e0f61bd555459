package kafka

import (
	"encoding/json"
	"log"

	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string, config *sarama.Config) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: producer}, nil
}

// SendMessage produces a JSON-encoded value keyed so all events of one
// room land on one partition, preserving per-room order for consumers.
func (p *Producer) SendMessage(topic string, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(jsonValue),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("Failed to send event: %v", err)
		return err
	}
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
