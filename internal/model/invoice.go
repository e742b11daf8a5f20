package model

import "time"

// InvoiceStatus enumerates invoice states.
type InvoiceStatus string

const (
	InvoiceIssued InvoiceStatus = "issued"
	InvoiceVoid   InvoiceStatus = "void"
)

// TaxRatePercent is the flat tax applied to invoice amounts.
const TaxRatePercent = 10

// Invoice bills a completed payment.  At most one invoice exists per
// payment, mirroring the certificate's at-most-once invariant.
type Invoice struct {
	ID            string        `json:"id"`
	PaymentID     string        `json:"payment_id"`
	InvoiceNumber string        `json:"invoice_number"`
	AmountCents   uint32        `json:"amount_cents"`
	TaxCents      uint32        `json:"tax_cents"`
	TotalCents    uint32        `json:"total_cents"`
	Status        InvoiceStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
