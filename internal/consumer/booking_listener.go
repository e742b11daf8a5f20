// Package consumer binds the services' event handlers to broker queues.
// Each listener owns one durable queue and translates decoded payloads into
// service calls; all idempotency lives in the services and the database.
package consumer

import (
	"context"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/repository"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// BookingListener consumes payment.* on behalf of the booking service: a
// completed payment confirms the appointment, a failed one is only logged
// (the appointment stays pending and the customer can retry checkout).
type BookingListener struct {
	bookings  *service.BookingService
	processed *repository.ProcessedEventRepo
	name      string
}

// NewBookingListener builds the listener.  name is the durable queue /
// consumer-group name.
func NewBookingListener(bookings *service.BookingService, processed *repository.ProcessedEventRepo, name string) *BookingListener {
	return &BookingListener{bookings: bookings, processed: processed, name: name}
}

// Keys returns the binding patterns for this listener's queue.
func (l *BookingListener) Keys() []string { return []string{"payment.*"} }

// Handle implements event.Handler.
func (l *BookingListener) Handle(ctx context.Context, env event.Envelope) error {
	payload, err := event.Decode(env)
	if err != nil {
		return err
	}
	switch p := payload.(type) {
	case *event.PaymentCompleted:
		return l.bookings.MarkPaid(ctx, l.name, l.processed, env, *p)
	case *event.PaymentFailed:
		// Nothing to roll back: the appointment never left pending/unpaid.
		return nil
	}
	return nil
}
