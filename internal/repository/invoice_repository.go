package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roadworthy/inspection-platform/internal/model"
)

// InvoiceRepo provides data access to the invoices table.
type InvoiceRepo struct {
	db *sql.DB
}

// NewInvoiceRepo returns a new InvoiceRepo bound to the given database.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// CreateTx inserts an invoice.  The unique key on payment_id carries the
// same at-most-once invariant as certificates.
func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	const q = `INSERT INTO invoices
        (id, payment_id, invoice_number, amount_cents, tax_cents, total_cents, status)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		inv.ID, inv.PaymentID, inv.InvoiceNumber, inv.AmountCents, inv.TaxCents, inv.TotalCents, inv.Status)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ExistsForPayment is the natural-key idempotency check for invoice
// generation.
func (r *InvoiceRepo) ExistsForPayment(ctx context.Context, paymentID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE payment_id = ?`, paymentID).Scan(&n)
	return n > 0, err
}

// GetByPayment loads the invoice billed against a payment.
func (r *InvoiceRepo) GetByPayment(ctx context.Context, paymentID string) (*model.Invoice, error) {
	const q = `SELECT id, payment_id, invoice_number, amount_cents, tax_cents, total_cents, status, created_at
               FROM invoices WHERE payment_id = ?`
	var inv model.Invoice
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(
		&inv.ID, &inv.PaymentID, &inv.InvoiceNumber, &inv.AmountCents, &inv.TaxCents,
		&inv.TotalCents, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}
