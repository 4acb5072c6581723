package events

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

const drainTimeout = 5 * time.Second

// Forwarder turns cart notifications into CartUpdated events. Listeners only
// enqueue; a single Run loop does the publishing so a slow broker never
// blocks a cart mutation.
type Forwarder struct {
	pub    CartPublisher
	logger *log.Logger
	queue  chan CartUpdated
	now    func() time.Time
}

func NewForwarder(pub CartPublisher, logger *log.Logger, buffer int) *Forwarder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Forwarder{
		pub:    pub,
		logger: logger,
		queue:  make(chan CartUpdated, buffer),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Listener returns a subscriber for the cart of deviceID. userID is read on
// every notification so sign-in and sign-out show up in later events.
func (f *Forwarder) Listener(deviceID string, userID func() string) cart.Listener {
	return func(items []cart.Item) {
		uid := ""
		if userID != nil {
			uid = userID()
		}
		ev := NewCartUpdated(deviceID, uid, items, f.now())
		select {
		case f.queue <- ev:
		default:
			f.logger.Printf("forwarder: queue full, dropping CartUpdated for device %s", deviceID)
		}
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left with a short deadline.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return
		case ev := <-f.queue:
			f.publish(ctx, ev)
		}
	}
}

func (f *Forwarder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-f.queue:
			f.publish(ctx, ev)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, ev CartUpdated) {
	if err := f.pub.PublishCartUpdated(ctx, ev); err != nil {
		f.logger.Printf("forwarder: publish CartUpdated for device %s: %v", ev.DeviceID, err)
	}
}
