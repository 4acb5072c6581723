package events

import (
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

const EventTypeCartUpdated = "CartUpdated"

type CartUpdated struct {
	EventType   string          `json:"eventType"`
	DeviceID    string          `json:"deviceId"`
	UserID      string          `json:"userId,omitempty"`
	Items       []CartItemEvent `json:"items"`
	TotalAmount float64         `json:"totalAmount"`
	Timestamp   time.Time       `json:"timestamp"`
}

type CartItemEvent struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// NewCartUpdated builds the event for a store notification.
func NewCartUpdated(deviceID, userID string, items []cart.Item, at time.Time) CartUpdated {
	ev := CartUpdated{
		EventType: EventTypeCartUpdated,
		DeviceID:  deviceID,
		UserID:    userID,
		Items:     make([]CartItemEvent, 0, len(items)),
		Timestamp: at,
	}
	for _, it := range items {
		ev.Items = append(ev.Items, CartItemEvent{
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		ev.TotalAmount += it.Subtotal()
	}
	return ev
}
