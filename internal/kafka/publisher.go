package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// Enqueuer is the part of Producer the publisher needs.
type Enqueuer interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) error
}

// EventPublisher sends order envelopes through a Producer, keyed by the
// envelope's correlation id so one order's events stay on one partition.
type EventPublisher struct {
	q Enqueuer
}

func NewEventPublisher(q Enqueuer) *EventPublisher {
	return &EventPublisher{q: q}
}

func (p *EventPublisher) Publish(_ context.Context, topic string, ev orders.Envelope) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventType, err)
	}
	if err := p.q.Publish(topic, []byte(ev.CorrelationID), b, envelopeHeaders(ev)...); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	return nil
}
