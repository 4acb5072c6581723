package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/contracts"
)

// CartPublisher is what the HTTP layer and the forwarder publish through.
type CartPublisher interface {
	PublishCartUpdated(ctx context.Context, ev CartUpdated) error
	PublishCartCheckedOut(ctx context.Context, c contracts.CheckedOut, correlationID string) error
}

type SequenceRepository interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// amqpChannel matches the methods from *amqp.Channel that we use.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch      amqpChannel
	seq     SequenceRepository
	timeout time.Duration
	now     func() time.Time
}

func NewPublisher(conn *amqp.Connection, seq SequenceRepository) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareStorefrontExchange(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return newPublisher(ch, seq), nil
}

func newPublisher(ch amqpChannel, seq SequenceRepository) *Publisher {
	return &Publisher{
		ch:      ch,
		seq:     seq,
		timeout: 3 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishCartUpdated(ctx context.Context, ev CartUpdated) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal CartUpdated: %w", err)
	}
	return p.publishJSON(ctx, CartUpdatedRoutingKey, body, "")
}

// PublishCartCheckedOut sends the enveloped event. When a sequence
// repository is configured the envelope carries the next sequence for the
// cart's partition key.
func (p *Publisher) PublishCartCheckedOut(ctx context.Context, c contracts.CheckedOut, correlationID string) error {
	var seq int64
	if p.seq != nil {
		next, err := p.seq.NextSequence(ctx, c.PartitionKey())
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		seq = next
	}

	env := contracts.BuildCartCheckedOutEvent(c, contracts.EnvelopeOptions{
		Sequence:      seq,
		CorrelationID: correlationID,
		OccurredAt:    p.now(),
	})
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal CartCheckedOut: %w", err)
	}
	return p.publishJSON(ctx, CartCheckedOutRoutingKey, body, env.EventID)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte, messageID string) error {
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.ch.PublishWithContext(
		pubCtx,
		StorefrontExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    p.now(),
			AppId:        publisherAppID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishCartUpdated(context.Context, CartUpdated) error { return nil }

func (Noop) PublishCartCheckedOut(context.Context, contracts.CheckedOut, string) error { return nil }
