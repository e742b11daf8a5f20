package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roadworthy/inspection-platform/internal/model"
)

// PaymentRepo provides data access to the payments table.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// DB exposes the underlying handle for cross-repository transactions.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

const paymentColumns = `id, appointment_id, amount_cents, currency, gateway_order_id,
       gateway_capture_id, status, refund_status, created_at, updated_at`

// Create inserts a pending payment after the gateway order has been created.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments
        (id, appointment_id, amount_cents, currency, gateway_order_id, status, refund_status)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.AppointmentID, p.AmountCents, p.Currency, p.GatewayOrderID, p.Status, p.RefundStatus)
	return err
}

// GetByID loads one payment; ErrNotFound when missing.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	return scanPayment(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx loads one payment with a row lock inside a transaction.
func (r *PaymentRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? FOR UPDATE`
	return scanPayment(tx.QueryRowContext(ctx, q, id))
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	var capture sql.NullString
	err := row.Scan(&p.ID, &p.AppointmentID, &p.AmountCents, &p.Currency, &p.GatewayOrderID,
		&capture, &p.Status, &p.RefundStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if capture.Valid {
		v := capture.String
		p.GatewayCaptureID = &v
	}
	return &p, nil
}

// HasCompletedForAppointment reports whether a completed payment already
// exists for the appointment.  The uniqueness check runs before any capture
// processing: at most one completed payment per appointment.
func (r *PaymentRepo) HasCompletedForAppointment(ctx context.Context, appointmentID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE appointment_id = ? AND status = 'completed'`
	var n int
	if err := r.db.QueryRowContext(ctx, q, appointmentID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasCompletedForAppointmentTx is the same check inside a transaction, used
// by the capture path right before flipping status.
func (r *PaymentRepo) HasCompletedForAppointmentTx(ctx context.Context, tx *sql.Tx, appointmentID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE appointment_id = ? AND status = 'completed' FOR UPDATE`
	var n int
	if err := tx.QueryRowContext(ctx, q, appointmentID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CompletedByAppointment loads the completed payment for an appointment.
// Invoice generation needs the payment id and captured amount.
func (r *PaymentRepo) CompletedByAppointment(ctx context.Context, appointmentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
               WHERE appointment_id = ? AND status = 'completed' LIMIT 1`
	return scanPayment(r.db.QueryRowContext(ctx, q, appointmentID))
}

// MarkCompletedTx records the capture id and flips the payment to completed.
func (r *PaymentRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, id, captureID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'completed', gateway_capture_id = ? WHERE id = ? AND status = 'pending'`,
		captureID, id)
	return err
}

// MarkFailed flips a pending payment to failed.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'failed' WHERE id = ? AND status = 'pending'`, id)
	return err
}

// MarkRefunded records the administrative refund on a completed payment.
// The payment row stays otherwise immutable.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET refund_status = 'refunded' WHERE id = ? AND status = 'completed'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
