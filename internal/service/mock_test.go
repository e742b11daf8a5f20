package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// The services open transactions straight on the repositories' database
// handle, so a driver-level fake is the seam: sqlmock stands in for MySQL and
// the tests assert which statements each flow does (and does not) issue.

var testTime = time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func countRows(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(int64(n))
}

func appointmentRows(id, customerID, status, paymentStatus string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "customer_id", "vehicle_id", "inspector_id", "scheduled_at",
		"service_tier", "status", "payment_status", "created_at", "updated_at",
	}).AddRow(id, customerID, "veh-4", nil, testTime, "standard", status, paymentStatus, testTime, testTime)
}

func paymentRows(id, appointmentID, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "appointment_id", "amount_cents", "currency", "gateway_order_id",
		"gateway_capture_id", "status", "refund_status", "created_at", "updated_at",
	}).AddRow(id, appointmentID, int64(7900), "USD", "order-1", nil, status, "none", testTime, testTime)
}

func inspectionRows(id, appointmentID string, inspector, status, result any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "appointment_id", "inspector_id", "status", "result",
		"started_at", "completed_at", "created_at", "updated_at",
	}).AddRow(id, appointmentID, inspector, status, result, nil, nil, testTime, testTime)
}

func checkpointRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"name", "required", "status", "notes", "photo_refs", "updated_at"})
}
