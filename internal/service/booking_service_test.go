package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/repository"
)

func newBookingService(t *testing.T) (*BookingService, *repository.ProcessedEventRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewBookingService(
		repository.NewAppointmentRepo(db),
		repository.NewOutboxRepo(db),
		"booking-service",
	)
	return svc, repository.NewProcessedEventRepo(db), mock
}

func paymentCompletedEnvelope(eventID string) (event.Envelope, event.PaymentCompleted) {
	env := event.Envelope{
		EventID:   eventID,
		EventType: event.TypePaymentCompleted,
		Metadata:  event.Metadata{Source: "payment-service", CorrelationID: "corr-1"},
	}
	return env, event.PaymentCompleted{PaymentID: "pay-1", AppointmentID: "appt-1"}
}

func TestMarkPaidConfirmsAppointmentOnce(t *testing.T) {
	svc, processed, mock := newBookingService(t)
	env, p := paymentCompletedEnvelope("evt-1")

	// First delivery confirms the appointment and queues appointment.confirmed.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("booking-service", "evt-1", event.TypePaymentCompleted).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM appointments WHERE id").WithArgs("appt-1").
		WillReturnRows(appointmentRows("appt-1", "cust-9", "pending", "unpaid"))
	mock.ExpectExec("UPDATE appointments SET payment_status = 'paid'").WithArgs("appt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_outbox").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := svc.MarkPaid(context.Background(), "booking-service", processed, env, p); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	expectMet(t, mock)

	// Redelivery of the same event id collides with the idempotency mark and
	// touches nothing else.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("booking-service", "evt-1", event.TypePaymentCompleted).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	if err := svc.MarkPaid(context.Background(), "booking-service", processed, env, p); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	expectMet(t, mock)
}

func TestMarkPaidLeavesCancelledAppointmentAlone(t *testing.T) {
	svc, processed, mock := newBookingService(t)
	env, p := paymentCompletedEnvelope("evt-2")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("booking-service", "evt-2", event.TypePaymentCompleted).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM appointments WHERE id").WithArgs("appt-1").
		WillReturnRows(appointmentRows("appt-1", "cust-9", "cancelled", "unpaid"))
	mock.ExpectCommit()

	if err := svc.MarkPaid(context.Background(), "booking-service", processed, env, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectMet(t, mock)
}
