package consumer

import (
	"context"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// InspectionListener consumes payment.completed to create inspections and
// the service's own inspection.completed to issue certificates and invoices.
// The self-subscription is deliberate: redelivering inspection.completed is
// the replay path that heals a certificate generation that crashed halfway.
type InspectionListener struct {
	inspections  *service.InspectionService
	certificates *service.CertificateService
}

// NewInspectionListener builds the listener.
func NewInspectionListener(inspections *service.InspectionService, certificates *service.CertificateService) *InspectionListener {
	return &InspectionListener{inspections: inspections, certificates: certificates}
}

// Keys returns the binding patterns for this listener's queue.
func (l *InspectionListener) Keys() []string {
	return []string{"payment.completed", "inspection.completed"}
}

// Handle implements event.Handler.
func (l *InspectionListener) Handle(ctx context.Context, env event.Envelope) error {
	payload, err := event.Decode(env)
	if err != nil {
		return err
	}
	switch p := payload.(type) {
	case *event.PaymentCompleted:
		return l.inspections.CreateForPayment(ctx, env, *p)
	case *event.InspectionCompleted:
		return l.certificates.HandleInspectionCompleted(ctx, env, *p)
	}
	return nil
}
