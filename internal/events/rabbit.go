package events

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Dial connects to RabbitMQ with a bounded dial timeout.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}
