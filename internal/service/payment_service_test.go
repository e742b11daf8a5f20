package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/roadworthy/inspection-platform/internal/gateway"
	"github.com/roadworthy/inspection-platform/internal/repository"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

func newPaymentService(t *testing.T) (*PaymentService, sqlmock.Sqlmock, *resilience.Registry) {
	t.Helper()
	db, mock := newMockDB(t)
	breakers := resilience.NewRegistry(resilience.BreakerSettings{})
	svc := NewPaymentService(
		repository.NewPaymentRepo(db),
		repository.NewAppointmentRepo(db),
		repository.NewOutboxRepo(db),
		gateway.New("http://127.0.0.1:1", "client-id", "client-secret"),
		breakers,
		"payment-service",
	)
	return svc, mock, breakers
}

// tripGatewayBreaker records enough failures to open the breaker without any
// gateway traffic.
func tripGatewayBreaker(t *testing.T, breakers *resilience.Registry) {
	t.Helper()
	down := errors.New("gateway unreachable")
	for i := 0; i < 10; i++ {
		_ = breakers.Get(gatewayBreaker).Execute(context.Background(), func(context.Context) error {
			return down
		})
	}
	if got := breakers.Get(gatewayBreaker).State(); got != resilience.StateOpen {
		t.Fatalf("breaker state %s, want open", got)
	}
}

func TestCaptureBreakerOpenLeavesPaymentPending(t *testing.T) {
	svc, mock, breakers := newPaymentService(t)
	tripGatewayBreaker(t, breakers)

	mock.ExpectQuery("FROM payments WHERE id").WithArgs("pay-1").
		WillReturnRows(paymentRows("pay-1", "appt-1", "pending"))
	mock.ExpectQuery("FROM payments WHERE appointment_id").WithArgs("appt-1").
		WillReturnRows(countRows(0))

	_, err := svc.Capture(context.Background(), "corr-1", "pay-1")
	var de *DownstreamError
	if !errors.As(err, &de) || !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("expected DownstreamError wrapping ErrOpen, got %v", err)
	}
	expectMet(t, mock)

	// No status flip and no payment.failed happened above, so the payment is
	// still pending and a retry gets the same transient answer instead of a
	// terminal conflict.
	mock.ExpectQuery("FROM payments WHERE id").WithArgs("pay-1").
		WillReturnRows(paymentRows("pay-1", "appt-1", "pending"))
	mock.ExpectQuery("FROM payments WHERE appointment_id").WithArgs("appt-1").
		WillReturnRows(countRows(0))

	_, err = svc.Capture(context.Background(), "corr-1", "pay-1")
	if !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("retry while open should short-circuit again, got %v", err)
	}
	expectMet(t, mock)
}

func TestCaptureGatewayFailureMarksFailed(t *testing.T) {
	svc, mock, _ := newPaymentService(t)

	mock.ExpectQuery("FROM payments WHERE id").WithArgs("pay-1").
		WillReturnRows(paymentRows("pay-1", "appt-1", "pending"))
	mock.ExpectQuery("FROM payments WHERE appointment_id").WithArgs("appt-1").
		WillReturnRows(countRows(0))
	// The gateway endpoint refuses the connection; a definitive failure
	// records the failed payment and queues payment.failed.
	mock.ExpectExec("UPDATE payments SET status = 'failed'").WithArgs("pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO event_outbox").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := svc.Capture(context.Background(), "corr-1", "pay-1")
	var de *DownstreamError
	if !errors.As(err, &de) {
		t.Fatalf("expected DownstreamError, got %v", err)
	}
	if errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("a closed breaker must surface the gateway error, got %v", err)
	}
	expectMet(t, mock)
}

func TestCaptureChecksCompletedPaymentBeforeGateway(t *testing.T) {
	svc, mock, _ := newPaymentService(t)

	// appt-1 already has a completed payment; the second pending payment must
	// be rejected before any money moves.
	mock.ExpectQuery("FROM payments WHERE id").WithArgs("pay-2").
		WillReturnRows(paymentRows("pay-2", "appt-1", "pending"))
	mock.ExpectQuery("FROM payments WHERE appointment_id").WithArgs("appt-1").
		WillReturnRows(countRows(1))

	_, err := svc.Capture(context.Background(), "corr-1", "pay-2")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	expectMet(t, mock)
}

func TestCaptureCompletedPaymentIsIdempotent(t *testing.T) {
	svc, mock, _ := newPaymentService(t)

	mock.ExpectQuery("FROM payments WHERE id").WithArgs("pay-1").
		WillReturnRows(paymentRows("pay-1", "appt-1", "completed"))

	p, err := svc.Capture(context.Background(), "corr-1", "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != "completed" {
		t.Fatalf("status = %s", p.Status)
	}
	expectMet(t, mock)
}
