package repository

import (
	"context"
	"fmt"

	"ZonePulse/internal/domain/models"
	domain "ZonePulse/internal/domain/repository"
	"ZonePulse/pkg/kafka"
)

// KafkaZonePublisher publishes confirmed zone events to a Kafka topic,
// keyed by symbol so one symbol's zones stay ordered on a partition.
type KafkaZonePublisher struct {
	producer *kafka.Producer
	topic    string
}

var _ domain.Dispatcher = (*KafkaZonePublisher)(nil)

func NewKafkaZonePublisher(producer *kafka.Producer, topic string) *KafkaZonePublisher {
	return &KafkaZonePublisher{producer: producer, topic: topic}
}

func (p *KafkaZonePublisher) Name() string { return "kafka" }

func (p *KafkaZonePublisher) Dispatch(ctx context.Context, e *models.ZoneEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(e.Symbol), e); err != nil {
		return fmt.Errorf("publish zone %s: %w", e.Zone.Key(), err)
	}
	return nil
}

func (p *KafkaZonePublisher) Close() error {
	return p.producer.Close()
}
