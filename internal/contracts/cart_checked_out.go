package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

const (
	CartCheckedOutEventName           = "CartCheckedOut"
	CartCheckedOutEventVersion        = 1
	CartCheckedOutEnvelopedSchemaPath = "contracts/events/cart/CartCheckedOut.v1.enveloped.schema.json"
	CartServiceProducer               = "cart-service"
)

type EventEnvelope struct {
	EventName     string                `json:"eventName"`
	EventVersion  int                   `json:"eventVersion"`
	EventID       string                `json:"eventId"`
	CorrelationID string                `json:"correlationId,omitempty"`
	Producer      string                `json:"producer"`
	PartitionKey  string                `json:"partitionKey"`
	Sequence      int64                 `json:"sequence"`
	OccurredAt    time.Time             `json:"occurredAt"`
	Schema        string                `json:"schema"`
	Payload       CartCheckedOutPayload `json:"payload"`
}

type CartCheckedOutPayload struct {
	DeviceID     string               `json:"deviceId"`
	UserID       string               `json:"userId,omitempty"`
	PreferenceID string               `json:"preferenceId"`
	Items        []CartCheckedOutItem `json:"items"`
	TotalAmount  float64              `json:"totalAmount"`
	Timestamp    time.Time            `json:"timestamp"`
}

type CartCheckedOutItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CheckedOut is what the checkout handler knows when a payment preference
// has been created for a cart.
type CheckedOut struct {
	DeviceID     string
	UserID       string
	PreferenceID string
	Items        []cart.Item
}

// PartitionKey orders checkouts per signed-in user, falling back to the
// device for guests.
func (c CheckedOut) PartitionKey() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.DeviceID
}

type EnvelopeOptions struct {
	Sequence      int64
	Producer      string
	CorrelationID string
	EventID       string
	OccurredAt    time.Time
}

func BuildCartCheckedOutEvent(c CheckedOut, opts EnvelopeOptions) EventEnvelope {
	eventID := opts.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	occurredAt := opts.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	producer := opts.Producer
	if producer == "" {
		producer = CartServiceProducer
	}

	payload := CartCheckedOutPayload{
		DeviceID:     c.DeviceID,
		UserID:       c.UserID,
		PreferenceID: c.PreferenceID,
		Items:        make([]CartCheckedOutItem, 0, len(c.Items)),
		Timestamp:    occurredAt,
	}
	for _, it := range c.Items {
		payload.Items = append(payload.Items, CartCheckedOutItem{
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		payload.TotalAmount += it.Subtotal()
	}

	return EventEnvelope{
		EventName:     CartCheckedOutEventName,
		EventVersion:  CartCheckedOutEventVersion,
		EventID:       eventID,
		CorrelationID: opts.CorrelationID,
		Producer:      producer,
		PartitionKey:  c.PartitionKey(),
		Sequence:      opts.Sequence,
		OccurredAt:    occurredAt,
		Schema:        CartCheckedOutEnvelopedSchemaPath,
		Payload:       payload,
	}
}
