// Package rabbitmq publishes registry events to a durable topic exchange.
// Routing keys are "identity.<EventType>" so consumers can bind per event kind.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"idregistry/internal/events"
	"idregistry/internal/registry/models"
)

const routingPrefix = "identity."

// Publisher is an events.Sink over one AMQP channel in confirm mode.
type Publisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishes
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects, declares the exchange and enables publisher confirms.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Name() string { return "rabbitmq" }

// Publish sends each event and waits for the broker to confirm all of them.
func (p *Publisher) Publish(ctx context.Context, batch []models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirms := make([]*amqp.DeferredConfirmation, 0, len(batch))
	for _, e := range batch {
		msg, err := message(e)
		if err != nil {
			return err
		}
		dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, RoutingKey(e), false, false, msg)
		if err != nil {
			return fmt.Errorf("publish %s: %w", e.Type, err)
		}
		confirms = append(confirms, dc)
	}
	for _, dc := range confirms {
		acked, err := dc.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("await confirm: %w", err)
		}
		if !acked {
			return errors.New("broker nacked event")
		}
	}
	return nil
}

func (p *Publisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}

// RoutingKey is the topic routing key for e.
func RoutingKey(e models.Event) string {
	return routingPrefix + string(e.Type)
}

func message(e models.Event) (amqp.Publishing, error) {
	body, err := events.Encode(e)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{"identity_id": e.Key()},
	}, nil
}
