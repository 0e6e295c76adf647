package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/sharifboss/bookhaven/internal/order"
)

const (
	OrderCreatedEventName    = "OrderCreated"
	OrderCreatedEventVersion = 1
	OrderCreatedSchemaPath   = "contracts/events/order/OrderCreated.v1.enveloped.schema.json"
)

type EventEnvelope struct {
	EventName     string              `json:"eventName"`
	EventVersion  int                 `json:"eventVersion"`
	EventID       string              `json:"eventId"`
	CorrelationID string              `json:"correlationId,omitempty"`
	CausationID   string              `json:"causationId,omitempty"`
	Producer      string              `json:"producer"`
	PartitionKey  string              `json:"partitionKey"`
	Sequence      int64               `json:"sequence"`
	OccurredAt    time.Time           `json:"occurredAt"`
	Schema        string              `json:"schema"`
	Payload       OrderCreatedPayload `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string             `json:"orderId"`
	UserID      string             `json:"userId"`
	Items       []OrderCreatedItem `json:"items"`
	TotalAmount float64            `json:"totalAmount"`
	Timestamp   time.Time          `json:"timestamp"`
}

type OrderCreatedItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type EnvelopeOptions struct {
	PartitionKey  string
	Sequence      int64
	CorrelationID string
	CausationID   string
	EventID       string
	OccurredAt    time.Time
}

func BuildOrderCreatedEvent(o *order.Order, opts EnvelopeOptions) EventEnvelope {
	eventID := opts.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	occurredAt := opts.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	payload := OrderCreatedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Timestamp:   occurredAt,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, OrderCreatedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	return EventEnvelope{
		EventName:     OrderCreatedEventName,
		EventVersion:  OrderCreatedEventVersion,
		EventID:       eventID,
		CorrelationID: opts.CorrelationID,
		CausationID:   opts.CausationID,
		Producer:      producerName,
		PartitionKey:  opts.PartitionKey,
		Sequence:      opts.Sequence,
		OccurredAt:    occurredAt,
		Schema:        OrderCreatedSchemaPath,
		Payload:       payload,
	}
}
