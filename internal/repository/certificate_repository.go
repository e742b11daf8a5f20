package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roadworthy/inspection-platform/internal/model"
)

// CertificateRepo provides data access to the certificates table.
type CertificateRepo struct {
	db *sql.DB
}

// NewCertificateRepo returns a new CertificateRepo bound to the given database.
func NewCertificateRepo(db *sql.DB) *CertificateRepo { return &CertificateRepo{db: db} }

// DB exposes the underlying handle for cross-repository transactions.
func (r *CertificateRepo) DB() *sql.DB { return r.db }

const certificateColumns = `id, inspection_id, certificate_number, vehicle_id, customer_id,
       issued_at, expires_at, status, signature`

// CreateTx inserts a certificate.  The unique key on inspection_id enforces
// the at-most-once invariant; a duplicate insert returns ErrDuplicate and the
// caller treats the generation as already done.
func (r *CertificateRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Certificate) error {
	const q = `INSERT INTO certificates
        (id, inspection_id, certificate_number, vehicle_id, customer_id, issued_at, expires_at, status, signature)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		c.ID, c.InspectionID, c.CertificateNumber, c.VehicleID, c.CustomerID,
		c.IssuedAt.UTC().Format("2006-01-02 15:04:05"),
		c.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
		c.Status, c.Signature)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ExistsForInspection is the natural-key idempotency check used by the
// inspection.completed consumer before generating anything.
func (r *CertificateRepo) ExistsForInspection(ctx context.Context, inspectionID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM certificates WHERE inspection_id = ?`, inspectionID).Scan(&n)
	return n > 0, err
}

// GetByNumber loads a certificate by its human-referenceable number.
func (r *CertificateRepo) GetByNumber(ctx context.Context, number string) (*model.Certificate, error) {
	const q = `SELECT ` + certificateColumns + ` FROM certificates WHERE certificate_number = ?`
	var c model.Certificate
	err := r.db.QueryRowContext(ctx, q, number).Scan(
		&c.ID, &c.InspectionID, &c.CertificateNumber, &c.VehicleID, &c.CustomerID,
		&c.IssuedAt, &c.ExpiresAt, &c.Status, &c.Signature)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Revoke marks a certificate revoked.  Administrative action only.
func (r *CertificateRepo) Revoke(ctx context.Context, number string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE certificates SET status = 'revoked' WHERE certificate_number = ? AND status <> 'revoked'`,
		number)
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
