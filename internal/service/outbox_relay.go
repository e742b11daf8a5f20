package service

import (
	"context"
	"log"
	"time"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/repository"
)

// relayInterval is how often the outbox is drained.  Eventing latency is
// bounded by this plus broker delivery time.
const relayInterval = 500 * time.Millisecond

// relayBatch caps rows drained per tick.
const relayBatch = 50

// OutboxRelay drains the event_outbox table to the broker.  Each service
// process runs one relay against its own database.  Publish happens after the
// producing transaction committed, so a broker outage delays events instead
// of losing them; a crash between publish and MarkPublished re-sends the
// event, which idempotent consumers absorb.
type OutboxRelay struct {
	outbox    *repository.OutboxRepo
	publisher *event.Publisher
}

// NewOutboxRelay builds a relay over the given outbox and publisher.
func NewOutboxRelay(outbox *repository.OutboxRepo, publisher *event.Publisher) *OutboxRelay {
	return &OutboxRelay{outbox: outbox, publisher: publisher}
}

// Run drains the outbox until ctx is cancelled.  Intended to run as a
// goroutine next to the HTTP server.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[outbox] drain: %v", err)
			}
		}
	}
}

// drain publishes pending rows in insertion order.  It stops at the first
// publish failure so ordering within the batch is preserved and the failed
// row is retried next tick.
func (r *OutboxRelay) drain(ctx context.Context) error {
	rows, err := r.outbox.FetchUnpublished(ctx, relayBatch)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := r.publisher.Publish(ctx, row.Envelope); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, row.ID); err != nil {
			return err
		}
	}
	return nil
}
