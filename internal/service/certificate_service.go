package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/model"
	"github.com/roadworthy/inspection-platform/internal/repository"
)

// CertificateService issues, verifies and revokes roadworthiness
// certificates, and bills the matching invoice.  Generation is driven by the
// inspection.completed event; redelivering that event is the healing path for
// a generation that crashed halfway.
type CertificateService struct {
	certificates *repository.CertificateRepo
	invoices     *repository.InvoiceRepo
	inspections  *repository.InspectionRepo
	appointments *repository.AppointmentRepo
	payments     *repository.PaymentRepo
	outbox       *repository.OutboxRepo
	processed    *repository.ProcessedEventRepo
	secret       []byte
	source       string
}

// NewCertificateService wires the service together.  secret signs
// certificates; it must match across replicas or verification breaks.
func NewCertificateService(
	certificates *repository.CertificateRepo,
	invoices *repository.InvoiceRepo,
	inspections *repository.InspectionRepo,
	appointments *repository.AppointmentRepo,
	payments *repository.PaymentRepo,
	outbox *repository.OutboxRepo,
	processed *repository.ProcessedEventRepo,
	secret, source string,
) *CertificateService {
	return &CertificateService{
		certificates: certificates,
		invoices:     invoices,
		inspections:  inspections,
		appointments: appointments,
		payments:     payments,
		outbox:       outbox,
		processed:    processed,
		secret:       []byte(secret),
		source:       source,
	}
}

const certConsumer = "certificate-service"

// Sign computes the certificate signature: hex HMAC-SHA256 over
// number|inspection_id|issue_date with the issue date in YYYY-MM-DD.
// Deterministic so verification can re-derive it from stored fields.
func Sign(secret []byte, number, inspectionID string, issuedAt time.Time) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s|%s|%s", number, inspectionID, issuedAt.UTC().Format("2006-01-02"))
	return hex.EncodeToString(mac.Sum(nil))
}

// newCertificateNumber builds a number like RW-2026-9F3A0C21.
func newCertificateNumber(year int) string {
	hexpart := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RW-%d-%s", year, hexpart)
}

func newInvoiceNumber(year int) string {
	hexpart := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%d-%s", year, hexpart)
}

// HandleInspectionCompleted generates certificate and invoice for a passed
// inspection.  Idempotent at three levels: the processed-events mark, the
// natural-key pre-checks, and the unique keys on inspection_id/payment_id.
// Failed and conditional results get no certificate and no invoice.
func (s *CertificateService) HandleInspectionCompleted(ctx context.Context, env event.Envelope, p event.InspectionCompleted) error {
	if p.Result != string(model.ResultPass) {
		log.Printf("[certificate] inspection %s result %s, nothing to issue", p.InspectionID, p.Result)
		return nil
	}
	seen, err := s.processed.Seen(ctx, certConsumer, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	exists, err := s.certificates.ExistsForInspection(ctx, p.InspectionID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	appt, err := s.appointments.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return fmt.Errorf("load appointment %s: %w", p.AppointmentID, err)
	}
	payment, err := s.payments.CompletedByAppointment(ctx, p.AppointmentID)
	if err != nil {
		return fmt.Errorf("load payment for appointment %s: %w", p.AppointmentID, err)
	}

	now := time.Now().UTC()
	number := newCertificateNumber(now.Year())
	cert := &model.Certificate{
		ID:                uuid.NewString(),
		InspectionID:      p.InspectionID,
		CertificateNumber: number,
		VehicleID:         appt.VehicleID,
		CustomerID:        appt.CustomerID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(model.CertificateValidity),
		Status:            model.CertificateActive,
		Signature:         Sign(s.secret, number, p.InspectionID, now),
	}
	inv := buildInvoice(payment, now.Year())

	tx, err := s.certificates.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.processed.MarkTx(ctx, tx, certConsumer, env.EventID, env.EventType); err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			return nil
		}
		return err
	}
	if err := s.certificates.CreateTx(ctx, tx, cert); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return tx.Commit()
		}
		return err
	}
	if err := s.invoices.CreateTx(ctx, tx, inv); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}

	certEnv, err := event.New(s.source, env.Metadata.CorrelationID, event.CertificateGenerated{
		CertificateID:     cert.ID,
		CertificateNumber: cert.CertificateNumber,
		InspectionID:      cert.InspectionID,
		ExpiresAt:         cert.ExpiresAt,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.AppendTx(ctx, tx, certEnv); err != nil {
		return err
	}
	invEnv, err := event.New(s.source, env.Metadata.CorrelationID, event.InvoiceCreated{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PaymentID:     inv.PaymentID,
		TotalCents:    inv.TotalCents,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.AppendTx(ctx, tx, invEnv); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[certificate] issued %s and %s for inspection %s (corr=%s)",
		cert.CertificateNumber, inv.InvoiceNumber, p.InspectionID, env.Metadata.CorrelationID)
	return nil
}

// buildInvoice prices an invoice off the captured payment with the flat tax
// rate applied on top.
func buildInvoice(p *model.Payment, year int) *model.Invoice {
	tax := p.AmountCents * model.TaxRatePercent / 100
	return &model.Invoice{
		ID:            uuid.NewString(),
		PaymentID:     p.ID,
		InvoiceNumber: newInvoiceNumber(year),
		AmountCents:   p.AmountCents,
		TaxCents:      tax,
		TotalCents:    p.AmountCents + tax,
		Status:        model.InvoiceIssued,
	}
}

// Verification is the public answer for a certificate number: validity plus
// the vehicle and owner the certificate was issued for.
type Verification struct {
	CertificateNumber string    `json:"certificate_number"`
	Valid             bool      `json:"valid"`
	Status            string    `json:"status"`
	VehicleID         string    `json:"vehicle_id"`
	CustomerID        string    `json:"customer_id"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Verify re-derives the signature from stored fields and reports validity.
// An active certificate past its expiry verifies as expired; revoked stays
// revoked.  Tampered rows (signature mismatch) are invalid regardless of
// status.
func (s *CertificateService) Verify(ctx context.Context, number string) (*Verification, error) {
	cert, err := s.certificates.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "certificate"}
		}
		return nil, err
	}

	status := cert.Status
	if status == model.CertificateActive && time.Now().UTC().After(cert.ExpiresAt) {
		status = model.CertificateExpired
	}
	expected := Sign(s.secret, cert.CertificateNumber, cert.InspectionID, cert.IssuedAt)
	authentic := hmac.Equal([]byte(expected), []byte(cert.Signature))

	return &Verification{
		CertificateNumber: cert.CertificateNumber,
		Valid:             authentic && status == model.CertificateActive,
		Status:            string(status),
		VehicleID:         cert.VehicleID,
		CustomerID:        cert.CustomerID,
		IssuedAt:          cert.IssuedAt,
		ExpiresAt:         cert.ExpiresAt,
	}, nil
}

// Revoke marks a certificate revoked.  Admin only; enforced by the route's
// role middleware.
func (s *CertificateService) Revoke(ctx context.Context, correlationID, number string) error {
	if err := s.certificates.Revoke(ctx, number); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Resource: "certificate"}
		}
		return err
	}
	log.Printf("[certificate] %s revoked (corr=%s)", number, correlationID)
	return nil
}
