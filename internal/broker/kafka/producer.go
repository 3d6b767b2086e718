package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"image-ingest/internal/domain"

	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

// EventProducer publishes ingest events keyed by image id. Publishing is
// best-effort from the orchestrator's point of view; retries happen here.
type EventProducer struct {
	producer *wbkafka.Producer
	retries  retry.Strategy
}

func NewEventProducer(brokers []string, topic string, retries retry.Strategy) *EventProducer {
	return &EventProducer{
		producer: wbkafka.NewProducer(brokers, topic),
		retries:  retries,
	}
}

func (p *EventProducer) Publish(ctx context.Context, event domain.IngestEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest event: %w", err)
	}

	if err := p.producer.SendWithRetry(ctx, p.retries, []byte(event.ImageID), value); err != nil {
		return fmt.Errorf("failed to send ingest event: %w", err)
	}
	return nil
}

func (p *EventProducer) Close() error {
	return p.producer.Close()
}
