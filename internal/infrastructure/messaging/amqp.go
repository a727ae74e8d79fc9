package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/courts/pkg/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends selected reservation events to a durable RabbitMQ queue
// through the default exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	ch         amqpChannel
	queue      string
	eventTypes map[string]bool
}

// NewAMQPPublisher dials the broker and declares the queue. When eventTypes is
// empty every event is forwarded.
func NewAMQPPublisher(ctx context.Context, url, queue string, eventTypes ...string) (*AMQPPublisher, error) {
	conn, err := retry.DoWithResult(ctx, retry.Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Name:         "amqp dial",
	}, func() (*amqp.Connection, error) {
		return amqp.Dial(url)
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	p := newAMQPPublisher(ch, queue, eventTypes...)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, queue string, eventTypes ...string) *AMQPPublisher {
	filter := make(map[string]bool, len(eventTypes))
	for _, et := range eventTypes {
		filter[et] = true
	}
	return &AMQPPublisher{ch: ch, queue: queue, eventTypes: filter}
}

func (p *AMQPPublisher) Name() string { return "amqp" }

func (p *AMQPPublisher) Publish(ctx context.Context, aggregateID string, eventType string, data map[string]any) error {
	if len(p.eventTypes) > 0 && !p.eventTypes[eventType] {
		return nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    aggregateID,
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
