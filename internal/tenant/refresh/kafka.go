package refresh

import (
	"context"
	"fmt"

	"tenantgate/internal/platform/kafka/consumer"
	"tenantgate/internal/platform/kafka/producer"
)

// MessageProducer publishes one Kafka message.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaBus broadcasts refreshes over a Kafka topic. Every node consumes the
// topic in its own consumer group.
type KafkaBus struct {
	producer MessageProducer
	topic    string
	listener *Listener
}

// NewKafkaBus returns a bus on topic.
func NewKafkaBus(p MessageProducer, topic string, listener *Listener) *KafkaBus {
	return &KafkaBus{producer: p, topic: topic, listener: listener}
}

// Publish broadcasts keys to every node.
func (b *KafkaBus) Publish(ctx context.Context, keys []string) error {
	origin := b.listener.Origin()
	payload, err := encode(Message{Origin: origin, Keys: keys})
	if err != nil {
		return err
	}
	err = b.producer.Produce(ctx, &producer.Message{
		Topic:   b.topic,
		Key:     []byte(origin),
		Value:   payload,
		Headers: map[string]string{"origin": origin},
	})
	if err != nil {
		return fmt.Errorf("publish refresh to kafka: %w", err)
	}
	return nil
}

// Handler adapts the bus for a Kafka consumer.
func (b *KafkaBus) Handler() consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		return b.listener.Handle(ctx, msg.Value)
	})
}
