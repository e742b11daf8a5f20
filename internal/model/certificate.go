package model

import "time"

// CertificateStatus enumerates the states of an issued certificate.
type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateExpired CertificateStatus = "expired"
	CertificateRevoked CertificateStatus = "revoked"
)

// CertificateValidity is how long a certificate is good for after issue.
const CertificateValidity = 365 * 24 * time.Hour

// Certificate attests that a vehicle passed inspection.  Generated at most
// once per inspection; a second trigger for the same inspection is a no-op.
// Revocation is an administrative action only.
type Certificate struct {
	ID                string            `json:"id"`
	InspectionID      string            `json:"inspection_id"`
	CertificateNumber string            `json:"certificate_number"`
	VehicleID         string            `json:"vehicle_id"`
	CustomerID        string            `json:"customer_id"`
	IssuedAt          time.Time         `json:"issued_at"`
	ExpiresAt         time.Time         `json:"expires_at"`
	Status            CertificateStatus `json:"status"`
	Signature         string            `json:"signature"`
}
