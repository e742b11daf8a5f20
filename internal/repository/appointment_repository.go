package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roadworthy/inspection-platform/internal/model"
)

// AppointmentRepo provides CRUD operations for appointments.  All timestamp
// fields are stored in UTC.  Rows are never deleted; cancellation is a
// status change.
type AppointmentRepo struct {
	db *sql.DB
}

// NewAppointmentRepo returns a new AppointmentRepo bound to the given database.
func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span repositories.
func (r *AppointmentRepo) DB() *sql.DB { return r.db }

const appointmentColumns = `id, customer_id, vehicle_id, inspector_id, scheduled_at,
       service_tier, status, payment_status, created_at, updated_at`

// CreateTx inserts a new appointment within the scope of an existing
// transaction.  The (inspector_id, time_bucket) unique key is the
// serialization point for double bookings: a duplicate-entry error is
// surfaced as ErrDuplicate so the caller can report the slot as taken.
func (r *AppointmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Appointment) error {
	const q = `INSERT INTO appointments
        (id, customer_id, vehicle_id, inspector_id, scheduled_at, time_bucket, service_tier, status, payment_status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		a.ID, a.CustomerID, a.VehicleID, a.InspectorID,
		a.ScheduledAt.UTC().Format("2006-01-02 15:04:05"),
		model.TimeBucket(a.ScheduledAt),
		a.ServiceTier, a.Status, a.PaymentStatus,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID loads a single appointment.  ErrNotFound is returned when no row
// exists.
func (r *AppointmentRepo) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	const q = `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	return scanAppointment(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID inside an existing transaction, with a row lock so
// concurrent consumers serialize on the same appointment.
func (r *AppointmentRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Appointment, error) {
	const q = `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ? FOR UPDATE`
	return scanAppointment(tx.QueryRowContext(ctx, q, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*model.Appointment, error) {
	var a model.Appointment
	var inspector sql.NullString
	err := row.Scan(&a.ID, &a.CustomerID, &a.VehicleID, &inspector, &a.ScheduledAt,
		&a.ServiceTier, &a.Status, &a.PaymentStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if inspector.Valid {
		v := inspector.String
		a.InspectorID = &v
	}
	return &a, nil
}

// ListByCustomer returns the customer's appointments, newest first.
func (r *AppointmentRepo) ListByCustomer(ctx context.Context, customerID string) ([]model.Appointment, error) {
	const q = `SELECT ` + appointmentColumns + ` FROM appointments
               WHERE customer_id = ? ORDER BY scheduled_at DESC LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ActiveTimesForInspector returns the scheduled times of the inspector's
// non-cancelled, non-completed appointments inside [from, to).  The conflict
// detector uses them for the 2-hour overlap check.
func (r *AppointmentRepo) ActiveTimesForInspector(ctx context.Context, inspectorID string, from, to time.Time) ([]time.Time, error) {
	const q = `SELECT scheduled_at FROM appointments
               WHERE inspector_id = ?
                 AND status NOT IN ('cancelled','completed')
                 AND scheduled_at >= ? AND scheduled_at < ?`
	return r.queryTimes(ctx, q, inspectorID,
		from.UTC().Format("2006-01-02 15:04:05"), to.UTC().Format("2006-01-02 15:04:05"))
}

// BookedTimesForDate returns scheduled times of non-terminal appointments on
// the given day, optionally restricted to one inspector.  Slot enumeration
// removes boundaries near these times.
func (r *AppointmentRepo) BookedTimesForDate(ctx context.Context, day time.Time, inspectorID string) ([]time.Time, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	if inspectorID != "" {
		const q = `SELECT scheduled_at FROM appointments
                   WHERE inspector_id = ? AND status NOT IN ('cancelled','completed')
                     AND scheduled_at >= ? AND scheduled_at < ?`
		return r.queryTimes(ctx, q, inspectorID,
			start.Format("2006-01-02 15:04:05"), end.Format("2006-01-02 15:04:05"))
	}
	const q = `SELECT scheduled_at FROM appointments
               WHERE status NOT IN ('cancelled','completed')
                 AND scheduled_at >= ? AND scheduled_at < ?`
	return r.queryTimes(ctx, q,
		start.Format("2006-01-02 15:04:05"), end.Format("2006-01-02 15:04:05"))
}

func (r *AppointmentRepo) queryTimes(ctx context.Context, q string, args ...any) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountForDay counts non-cancelled appointments scheduled on the given day.
// The booking service compares it against the daily capacity cap.
func (r *AppointmentRepo) CountForDay(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	const q = `SELECT COUNT(*) FROM appointments
               WHERE status <> 'cancelled' AND scheduled_at >= ? AND scheduled_at < ?`
	var n int
	err := r.db.QueryRowContext(ctx, q,
		start.Format("2006-01-02 15:04:05"), end.Format("2006-01-02 15:04:05")).Scan(&n)
	return n, err
}

// UpdateStatusTx sets the appointment status within a transaction.
func (r *AppointmentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.AppointmentStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, status, id)
	return err
}

// MarkPaidTx flips payment status to paid and status to confirmed within a
// transaction.  Idempotency is the caller's concern (processed-event check
// plus the current-state guard it applies before calling).
func (r *AppointmentRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE appointments SET payment_status = 'paid', status = 'confirmed'
         WHERE id = ? AND status = 'pending'`, id)
	return err
}

// AssignInspectorTx records the inspector on the appointment.  The write can
// violate the (inspector_id, time_bucket) unique key when the inspector is
// already booked in that window; that conflict is surfaced as ErrDuplicate.
func (r *AppointmentRepo) AssignInspectorTx(ctx context.Context, tx *sql.Tx, id, inspectorID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE appointments SET inspector_id = ? WHERE id = ? AND inspector_id IS NULL`,
		inspectorID, id)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}
