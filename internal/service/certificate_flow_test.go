package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/model"
	"github.com/roadworthy/inspection-platform/internal/repository"
)

func newMockCertificateService(t *testing.T, secret string) (*CertificateService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewCertificateService(
		repository.NewCertificateRepo(db),
		repository.NewInvoiceRepo(db),
		repository.NewInspectionRepo(db),
		repository.NewAppointmentRepo(db),
		repository.NewPaymentRepo(db),
		repository.NewOutboxRepo(db),
		repository.NewProcessedEventRepo(db),
		secret, "inspection-service",
	)
	return svc, mock
}

func inspectionCompletedEnvelope(eventID, result string) (event.Envelope, event.InspectionCompleted) {
	env := event.Envelope{
		EventID:   eventID,
		EventType: event.TypeInspectionCompleted,
		Metadata:  event.Metadata{Source: "inspection-service", CorrelationID: "corr-1"},
	}
	p := event.InspectionCompleted{
		InspectionID:  "ins-1",
		AppointmentID: "appt-1",
		InspectorID:   "emp-7",
		Result:        result,
	}
	return env, p
}

func TestCertificateGenerationIsIdempotent(t *testing.T) {
	svc, mock := newMockCertificateService(t, "s3cret")

	// Redelivery of an already processed event id stops at the ledger.
	env, p := inspectionCompletedEnvelope("evt-9", "pass")
	mock.ExpectQuery("FROM processed_events WHERE consumer").
		WithArgs("certificate-service", "evt-9").
		WillReturnRows(countRows(1))
	if err := svc.HandleInspectionCompleted(context.Background(), env, p); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	expectMet(t, mock)

	// A fresh event id for the same inspection stops at the natural key: the
	// certificate already exists, so nothing is generated again.
	env2, p2 := inspectionCompletedEnvelope("evt-10", "pass")
	mock.ExpectQuery("FROM processed_events WHERE consumer").
		WithArgs("certificate-service", "evt-10").
		WillReturnRows(countRows(0))
	mock.ExpectQuery("FROM certificates WHERE inspection_id").WithArgs("ins-1").
		WillReturnRows(countRows(1))
	if err := svc.HandleInspectionCompleted(context.Background(), env2, p2); err != nil {
		t.Fatalf("same inspection, new event id: %v", err)
	}
	expectMet(t, mock)
}

func TestCertificateGenerationSkipsNonPassResults(t *testing.T) {
	svc, mock := newMockCertificateService(t, "s3cret")
	for _, result := range []string{"fail", "conditional"} {
		env, p := inspectionCompletedEnvelope("evt-11", result)
		if err := svc.HandleInspectionCompleted(context.Background(), env, p); err != nil {
			t.Fatalf("%s: %v", result, err)
		}
	}
	// No queries at all: a failed inspection gets neither certificate nor
	// invoice.
	expectMet(t, mock)
}

func certificateRow(number, inspectionID string, issued, expires time.Time, status, signature string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "inspection_id", "certificate_number", "vehicle_id", "customer_id",
		"issued_at", "expires_at", "status", "signature",
	}).AddRow("cert-1", inspectionID, number, "veh-4", "cust-9", issued, expires, status, signature)
}

func TestVerifyReportsVehicleAndOwner(t *testing.T) {
	svc, mock := newMockCertificateService(t, "s3cret")

	const number = "RW-2026-AB12CD34"
	issued := time.Now().UTC().Add(-24 * time.Hour)
	expires := issued.Add(model.CertificateValidity)
	sig := Sign([]byte("s3cret"), number, "ins-1", issued)

	mock.ExpectQuery("FROM certificates WHERE certificate_number").WithArgs(number).
		WillReturnRows(certificateRow(number, "ins-1", issued, expires, "active", sig))

	v, err := svc.Verify(context.Background(), number)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Valid || v.Status != "active" {
		t.Fatalf("valid=%v status=%s", v.Valid, v.Status)
	}
	if v.VehicleID != "veh-4" || v.CustomerID != "cust-9" {
		t.Fatalf("vehicle=%s customer=%s", v.VehicleID, v.CustomerID)
	}
	expectMet(t, mock)
}

func TestVerifyExpiredAndTampered(t *testing.T) {
	svc, mock := newMockCertificateService(t, "s3cret")

	const number = "RW-2025-00FF00FF"
	issued := time.Now().UTC().Add(-2 * 365 * 24 * time.Hour)
	expires := issued.Add(model.CertificateValidity)
	sig := Sign([]byte("s3cret"), number, "ins-1", issued)

	// Past expiry an active row verifies as expired.
	mock.ExpectQuery("FROM certificates WHERE certificate_number").WithArgs(number).
		WillReturnRows(certificateRow(number, "ins-1", issued, expires, "active", sig))
	v, err := svc.Verify(context.Background(), number)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Valid || v.Status != "expired" {
		t.Fatalf("valid=%v status=%s, want expired and invalid", v.Valid, v.Status)
	}

	// A row whose signature does not re-derive is invalid regardless of status.
	fresh := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery("FROM certificates WHERE certificate_number").WithArgs(number).
		WillReturnRows(certificateRow(number, "ins-1", fresh, fresh.Add(model.CertificateValidity), "active", "deadbeef"))
	v, err = svc.Verify(context.Background(), number)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Valid {
		t.Fatal("tampered signature must not verify")
	}
	expectMet(t, mock)

	mock.ExpectQuery("FROM certificates WHERE certificate_number").WithArgs("RW-2026-MISSING0").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "inspection_id", "certificate_number", "vehicle_id", "customer_id",
			"issued_at", "expires_at", "status", "signature",
		}))
	_, err = svc.Verify(context.Background(), "RW-2026-MISSING0")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown number, got %v", err)
	}
	expectMet(t, mock)
}
