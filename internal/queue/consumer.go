package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultAnalyticsQueue is the durable queue the analytics worker reads from
	DefaultAnalyticsQueue = "smart_health_interaction_analytics"

	// EventBindingKey matches every interaction event routing key
	EventBindingKey = "interaction.#"
)

// Delivery is a decoded event awaiting acknowledgement
type Delivery struct {
	Event *Event
	raw   amqp.Delivery
}

// NewDelivery pairs a decoded event with the raw delivery it came from
func NewDelivery(event *Event, raw amqp.Delivery) *Delivery {
	return &Delivery{Event: event, raw: raw}
}

// Ack acknowledges the delivery
func (d *Delivery) Ack() error {
	return d.raw.Ack(false)
}

// Reject drops the delivery without requeueing it
func (d *Delivery) Reject() error {
	return d.raw.Nack(false, false)
}

// Requeue returns the delivery to the queue
func (d *Delivery) Requeue() error {
	return d.raw.Nack(false, true)
}

// RabbitMQConsumer reads interaction events from a queue bound to the event exchange
type RabbitMQConsumer struct {
	conn         *amqp.Connection
	exchangeName string
	queueName    string
}

// NewRabbitMQConsumer connects to RabbitMQ and declares the exchange, the
// queue and the binding between them
func NewRabbitMQConsumer(amqpURL, queueName string) (*RabbitMQConsumer, error) {
	if queueName == "" {
		queueName = DefaultAnalyticsQueue
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c := &RabbitMQConsumer{conn: conn, exchangeName: DefaultExchangeName, queueName: queueName}
	if err := c.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queue: %w", err)
	}
	return c, nil
}

func (c *RabbitMQConsumer) setup() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if err := ch.ExchangeDeclare(c.exchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(c.queueName, EventBindingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Consume starts delivery on a dedicated channel. prefetchCount bounds the
// unacknowledged events held by this consumer. Both returned channels are
// closed when ctx is done or the broker closes the delivery stream.
func (c *RabbitMQConsumer) Consume(ctx context.Context, prefetchCount int) (<-chan *Delivery, <-chan error, error) {
	consumeCh, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		c.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan *Delivery, max(prefetchCount, 1))
	errs := make(chan error, 1)
	go func() {
		defer func() {
			_ = consumeCh.Close()
		}()
		pump(ctx, deliveries, out, errs)
	}()
	return out, errs, nil
}

// pump decodes raw deliveries into out until ctx is done or deliveries closes.
// Undecodable messages are rejected and reported on errs without blocking.
func pump(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- *Delivery, errs chan<- error) {
	defer close(out)
	defer close(errs)

	report := func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				report(errors.New("delivery channel closed"))
				return
			}

			event, err := DecodeEvent(raw.Body)
			if err != nil {
				_ = raw.Nack(false, false)
				report(err)
				continue
			}

			select {
			case <-ctx.Done():
				_ = raw.Nack(false, true)
				return
			case out <- NewDelivery(event, raw):
			}
		}
	}
}

// DecodeEvent parses a published event body
func DecodeEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if !event.Type.IsKnown() {
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	return &event, nil
}

// HealthCheck verifies the connection is still open
func (c *RabbitMQConsumer) HealthCheck(_ context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("RabbitMQ connection is closed")
	}
	return nil
}

// Close closes the connection and with it every consumer channel
func (c *RabbitMQConsumer) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}
	return nil
}
