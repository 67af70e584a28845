package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("broker: connection closed")

// Queues lists every command queue, bound to the topic exchange under the
// routing key of the same name.
var Queues = []string{
	"commands.withdrawal",
	"commands.check_balance",
	"commands.reserve_balance",
	"commands.process_transaction",
	"commands.confirm_transaction",
	"commands.update_statement",
	"commands.notify_user",
	"commands.release_balance",
}

type Config struct {
	URL      string
	Exchange string
}

// Client is a thin wrapper around an amqp091 connection plus one channel.
// Consumers that need their own prefetch window open dedicated channels via
// ConsumeChannel.
type Client struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects and declares the topic exchange and the durable command
// queues with their bindings.
func Dial(c Config) (*Client, error) {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return nil, fmt.Errorf("broker dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broker channel: %w", err)
	}

	cl := &Client{conn: conn, ch: ch, exchange: c.Exchange}
	if err := cl.declareTopology(); err != nil {
		_ = cl.Close()
		return nil, err
	}
	return cl, nil
}

func (c *Client) declareTopology() error {
	if err := c.ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	for _, q := range Queues {
		if _, err := c.ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := c.ch.QueueBind(q, q, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// Alive reports whether the underlying connection is still open.
func (c *Client) Alive() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Publish sends a persistent message to the topic exchange under routingKey.
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	if !c.Alive() {
		return ErrClosed
	}
	return c.ch.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// ConsumeChannel opens a dedicated channel with the given prefetch and starts
// a manual-ack consumer on queue. The caller settles every delivery.
func (c *Client) ConsumeChannel(queue string, prefetch int) (<-chan amqp.Delivery, *amqp.Channel, error) {
	if !c.Alive() {
		return nil, nil, ErrClosed
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("consume channel %s: %w", queue, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("qos %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, ch, nil
}

func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// CommandPublisher publishes saga command envelopes.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, name string, payload any) error
}

// PublishCommand wraps payload in the shared envelope and routes it by
// command name.
func (c *Client) PublishCommand(ctx context.Context, name string, payload any) error {
	key, ok := model.RoutingKeys[name]
	if !ok {
		return fmt.Errorf("broker: unknown command %q", name)
	}
	body, err := model.NewEnvelope(name, payload)
	if err != nil {
		return fmt.Errorf("broker: envelope %s: %w", name, err)
	}
	return c.Publish(ctx, key, body)
}
