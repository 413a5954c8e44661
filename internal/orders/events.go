package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced          = "OrderPlaced"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventStoreSettingsUpdated = "StoreSettingsUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or merchant_id
	Payload       json.RawMessage `json:"payload"`
}

// EnvelopeVersion is bumped when a payload changes incompatibly.
const EnvelopeVersion = 1

// NewEnvelope wraps payload in a fresh envelope.
func NewEnvelope(eventType, producer, correlationID string, payload any, now time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EnvelopeVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

type OrderPlacedPayload struct {
	Order          Order `json:"order"`
	RemainingStock int   `json:"remaining_stock"`
}

type OrderStatusChangedPayload struct {
	Order Order  `json:"order"`
	From  Status `json:"from"`
	To    Status `json:"to"`
}

type StoreSettingsUpdatedPayload struct {
	MerchantID      string `json:"merchant_id"`
	StoreName       string `json:"store_name"`
	Currency        string `json:"currency"`
	ProductsUpdated int    `json:"products_updated"`
}

//go:generate mockgen -source=events.go -destination=mock_publisher.go -package=orders

// Publisher delivers envelopes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Envelope) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Envelope) error { return nil }
