package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Cart events go to one durable topic exchange shared by the storefront.
// Routing keys read "<aggregate>.<event>.v<version>".
const (
	StorefrontExchange       = "storefront.events"
	CartUpdatedRoutingKey    = "cart.updated.v1"
	CartCheckedOutRoutingKey = "cart.checkedout.v1"

	// publisherAppID is stamped on every message as the AMQP app-id.
	publisherAppID = "cerveza-cart"
)

type exchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

// declareStorefrontExchange is idempotent; the broker only complains when an
// existing exchange was declared with different flags.
func declareStorefrontExchange(ch exchangeDeclarer) error {
	const (
		durable    = true
		autoDelete = false
		internal   = false
		noWait     = false
	)
	if err := ch.ExchangeDeclare(StorefrontExchange, amqp.ExchangeTopic, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", StorefrontExchange, err)
	}
	return nil
}
