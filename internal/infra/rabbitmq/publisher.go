package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const ArtifactRoutingKey = "timelapse.artifact"

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// Dial connects to the broker and declares the durable topic exchange that
// artifact events are published to.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	pub, err := NewPublisher(conn, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	pub.conn = conn
	return pub, nil
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}

	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type EventPublisher struct {
	pub        *Publisher
	routingKey string
	logger     *zap.Logger
}

func NewEventPublisher(pub *Publisher, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{pub: pub, routingKey: ArtifactRoutingKey, logger: logger}
}

func (ep *EventPublisher) PublishArtifactEvent(ctx context.Context, msg []byte) error {
	err := ep.pub.channel.PublishWithContext(ctx,
		ep.pub.exchange,
		ep.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish artifact event: %w", err)
	}
	ep.logger.Debug("artifact event published", zap.String("routing_key", ep.routingKey))
	return nil
}
