package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/gateway"
	"github.com/roadworthy/inspection-platform/internal/model"
	"github.com/roadworthy/inspection-platform/internal/repository"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

// gatewayBreaker names the breaker guarding all payment gateway calls.
const gatewayBreaker = "payment-gateway"

// PaymentService drives checkout and capture against the external gateway.
// Every gateway call goes through the circuit breaker; while the breaker is
// open callers get a DownstreamError immediately.
type PaymentService struct {
	payments     *repository.PaymentRepo
	appointments *repository.AppointmentRepo
	outbox       *repository.OutboxRepo
	gateway      *gateway.Client
	breakers     *resilience.Registry
	source       string
}

// NewPaymentService wires the service together.
func NewPaymentService(
	payments *repository.PaymentRepo,
	appointments *repository.AppointmentRepo,
	outbox *repository.OutboxRepo,
	gw *gateway.Client,
	breakers *resilience.Registry,
	source string,
) *PaymentService {
	return &PaymentService{
		payments:     payments,
		appointments: appointments,
		outbox:       outbox,
		gateway:      gw,
		breakers:     breakers,
		source:       source,
	}
}

// CheckoutResult is returned to the customer so they can approve the order.
type CheckoutResult struct {
	Payment    *model.Payment `json:"payment"`
	ApproveURL string         `json:"approve_url"`
}

// Checkout opens a gateway order for an appointment.  The amount comes from
// the appointment's service tier, never from the request.  A completed
// payment for the appointment blocks a second checkout.
func (s *PaymentService) Checkout(ctx context.Context, correlationID, appointmentID, customerID string) (*CheckoutResult, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "appointment"}
		}
		return nil, err
	}
	if customerID != "" && appt.CustomerID != customerID {
		return nil, &ForbiddenError{Msg: "appointment belongs to another customer"}
	}
	if appt.Status == model.AppointmentCancelled {
		return nil, &ConflictError{Msg: "appointment is cancelled"}
	}
	done, err := s.payments.HasCompletedForAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, &ConflictError{Msg: "appointment is already paid"}
	}

	amount := appt.ServiceTier.PriceCents()
	var order *gateway.Order
	err = s.breakers.Get(gatewayBreaker).Execute(ctx, func(ctx context.Context) error {
		var gerr error
		order, gerr = s.gateway.CreateOrder(ctx, amount, "USD")
		return gerr
	})
	if err != nil {
		return nil, &DownstreamError{Op: "create gateway order", Err: err}
	}

	p := &model.Payment{
		ID:             uuid.NewString(),
		AppointmentID:  appointmentID,
		AmountCents:    amount,
		Currency:       "USD",
		GatewayOrderID: order.ID,
		Status:         model.PaymentStatusPending,
		RefundStatus:   model.RefundNone,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[payment] checkout opened: payment %s order %s amount %d (corr=%s)",
		p.ID, order.ID, amount, correlationID)
	return &CheckoutResult{Payment: p, ApproveURL: order.ApproveURL}, nil
}

// Capture captures the approved gateway order and completes the payment.
// The status flip, at-most-once check and outbox append share a transaction.
// A gateway failure marks the payment failed and emits payment.failed.
func (s *PaymentService) Capture(ctx context.Context, correlationID, paymentID string) (*model.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "payment"}
		}
		return nil, err
	}
	switch p.Status {
	case model.PaymentStatusCompleted:
		// Capturing twice returns the same completed payment.
		return p, nil
	case model.PaymentStatusPending:
	default:
		return nil, &ConflictError{Msg: fmt.Sprintf("payment is %s", p.Status)}
	}

	// At-most-once guard before the gateway is touched: losing this race
	// after moving money would strand the captured funds.
	done, err := s.payments.HasCompletedForAppointment(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, &ConflictError{Msg: "appointment is already paid"}
	}

	var cap *gateway.Capture
	err = s.breakers.Get(gatewayBreaker).Execute(ctx, func(ctx context.Context) error {
		var gerr error
		cap, gerr = s.gateway.CaptureOrder(ctx, p.GatewayOrderID)
		return gerr
	})
	if err != nil {
		// An open breaker never reached the gateway, and a timed-out call
		// has an unknown outcome.  In both cases the payment stays pending
		// so the customer can retry; only a definitive gateway answer fails
		// the payment.
		if errors.Is(err, resilience.ErrOpen) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &DownstreamError{Op: "capture gateway order", Err: err}
		}
		s.failPayment(ctx, correlationID, p, err)
		return nil, &DownstreamError{Op: "capture gateway order", Err: err}
	}

	tx, err := s.payments.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Re-check under lock: another capture for the same appointment may have
	// completed between the read above and here.
	done, err = s.payments.HasCompletedForAppointmentTx(ctx, tx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, &ConflictError{Msg: "appointment is already paid"}
	}
	if err := s.payments.MarkCompletedTx(ctx, tx, p.ID, cap.ID); err != nil {
		return nil, err
	}

	env, err := event.New(s.source, correlationID, event.PaymentCompleted{
		PaymentID:     p.ID,
		AppointmentID: p.AppointmentID,
		CaptureID:     cap.ID,
		AmountCents:   cap.AmountCents,
		Currency:      cap.Currency,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.AppendTx(ctx, tx, env); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.Status = model.PaymentStatusCompleted
	p.GatewayCaptureID = &cap.ID
	log.Printf("[payment] payment %s captured as %s (corr=%s)", p.ID, cap.ID, correlationID)
	return p, nil
}

// failPayment records a failed capture and emits payment.failed.  Best
// effort: the capture error is what the caller sees either way.
func (s *PaymentService) failPayment(ctx context.Context, correlationID string, p *model.Payment, cause error) {
	if err := s.payments.MarkFailed(ctx, p.ID); err != nil {
		log.Printf("[payment] mark failed %s: %v", p.ID, err)
		return
	}
	tx, err := s.payments.DB().BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[payment] open tx for payment.failed: %v", err)
		return
	}
	defer tx.Rollback()
	env, err := event.New(s.source, correlationID, event.PaymentFailed{
		PaymentID:     p.ID,
		AppointmentID: p.AppointmentID,
		Reason:        cause.Error(),
	})
	if err != nil {
		return
	}
	if err := s.outbox.AppendTx(ctx, tx, env); err != nil {
		log.Printf("[payment] append payment.failed: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[payment] commit payment.failed: %v", err)
	}
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*model.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "payment"}
		}
		return nil, err
	}
	return p, nil
}

// Refund flags a completed payment as refunded.  Administrative action; the
// actual money movement happens out of band.
func (s *PaymentService) Refund(ctx context.Context, correlationID, paymentID string) error {
	if err := s.payments.MarkRefunded(ctx, paymentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ConflictError{Msg: "only completed payments can be refunded"}
		}
		return err
	}
	log.Printf("[payment] payment %s refunded (corr=%s)", paymentID, correlationID)
	return nil
}
