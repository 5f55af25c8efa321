package ports

import (
	"context"

	"github.com/rabbitmq/amqp091-go"

	"dropshare-api/internal/infrastructure/mq"
)

// EventPublisher is the part of the broker the services use.
type EventPublisher interface {
	GetInputChan() chan mq.Event
}

type RabbitMQ interface {
	EventPublisher
	Connect(ctx context.Context, dsn string) error
	Init() error
	PublisherWorker(ctx context.Context)
	GetConn() *amqp091.Connection
}
