package cart

import "time"

// LocalKey is the local store key holding the serialized cart.
const LocalKey = "cart"

// Product describes what is being added to the cart.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

// Item is a line item. Quantity is always >= 1 while the item is in a cart.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"qty"`
	Image    string  `json:"image,omitempty"`
}

func (it Item) Subtotal() float64 {
	return it.Price * float64(it.Quantity)
}

// RemoteSnapshot is the per-user cart record kept by a RemoteStore.
type RemoteSnapshot struct {
	Items     []Item
	UpdatedAt time.Time
}

// Phase tracks where a store is in the sign-in protocol.
type Phase string

const (
	// PhaseGuest: no identity attached.
	PhaseGuest Phase = "guest"
	// PhaseAttached: identity attached, remote snapshot not merged yet.
	PhaseAttached Phase = "attached"
	// PhaseMerged: remote snapshot merged into the local cart.
	PhaseMerged Phase = "merged"
	// PhaseSynced: local cart pushed to the remote store.
	PhaseSynced Phase = "synced"
)

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
