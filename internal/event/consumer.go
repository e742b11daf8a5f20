package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one decoded envelope.  Returning an error leaves the
// message unacknowledged: the first failure requeues it, a failure of the
// redelivered copy rejects it for good with a full-context log line.  A
// handler must therefore be idempotent against redelivery.
type Handler func(ctx context.Context, env Envelope) error

// Consumer binds a durable queue to the topic exchange and feeds deliveries
// through a Handler, one message at a time.  It reconnects with capped
// exponential backoff and only stops when the context is cancelled.
type Consumer struct {
	name     string // consumer group name, used for the queue and in logs
	url      string
	exchange string
	keys     []string // binding patterns, e.g. "payment.*"
}

// NewConsumer describes a consumer; no connection happens until Run.
func NewConsumer(name, url, exchange string, keys []string) *Consumer {
	return &Consumer{name: name, url: url, exchange: exchange, keys: keys}
}

// Run blocks, consuming until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("%s: failed to dial broker: %v; retrying in %s", c.name, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := c.consumeLoop(ctx, conn, handle); err != nil {
			log.Printf("%s: consume loop ended: %v; reconnecting", c.name, err)
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, rk := range c.keys {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", rk, err)
		}
	}
	// One message at a time per consumer group member; ordering holds per
	// routing key, not across keys.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Printf("%s: set QoS failed: %v", c.name, err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		c.dispatch(ctx, d, handle)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle Handler) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		// A malformed body will never parse; reject without requeue.
		log.Printf("%s: unmarshal envelope failed (key=%s): %v", c.name, d.RoutingKey, err)
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, env); err != nil {
		if errors.Is(err, ErrUnknownType) {
			// Not one of ours; acknowledge so the queue drains.
			_ = d.Ack(false)
			return
		}
		if !d.Redelivered {
			log.Printf("%s: handle %s failed (event_id=%s correlation_id=%s): %v; requeueing once",
				c.name, env.EventType, env.EventID, env.Metadata.CorrelationID, err)
			_ = d.Nack(false, true)
			return
		}
		// Bounded retry exhausted.  Known gap: without a dead-letter path the
		// message is dropped after this log line.
		log.Printf("%s: handle %s failed after redelivery (event_id=%s correlation_id=%s): %v; dropping",
			c.name, env.EventType, env.EventID, env.Metadata.CorrelationID, err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
