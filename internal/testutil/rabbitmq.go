package testutil

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/events"
)

// StartRabbitMQ launches a RabbitMQ container and returns a ready AMQP
// connection. Both are closed with t.Cleanup.
func StartRabbitMQ(t *testing.T) *amqp.Connection {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	var conn *amqp.Connection
	require.Eventually(t, func() bool {
		conn, err = events.Dial("amqp://guest:guest@" + host + ":" + mappedPort.Port() + "/")
		return err == nil
	}, 30*time.Second, 500*time.Millisecond, "rabbitmq never accepted connections")

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cleanupCancel()
		_ = conn.Close()
		_ = container.Terminate(cleanupCtx)
	})
	return conn
}

// BindQueue declares an exclusive queue bound to routingKey on the events
// exchange and returns its deliveries.
func BindQueue(t *testing.T, conn *amqp.Connection, routingKey string) <-chan amqp.Delivery {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.ExchangeDeclare(events.StorefrontExchange, "topic", true, false, false, false, nil))
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, routingKey, events.StorefrontExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)
	return deliveries
}
