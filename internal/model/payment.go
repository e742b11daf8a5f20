package model

import "time"

// PaymentStatus enumerates the states of a payment record.  A payment is
// immutable once completed except for its refund fields.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// RefundStatus tracks the refund lifecycle on a completed payment.
type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundRequested RefundStatus = "requested"
	RefundRefunded  RefundStatus = "refunded"
)

// Payment mirrors one checkout attempt against the external gateway.
// At most one completed payment may exist per appointment; the capture
// transaction enforces this with a pre-check before flipping status.
type Payment struct {
	ID               string        `json:"id"`
	AppointmentID    string        `json:"appointment_id"`
	AmountCents      uint32        `json:"amount_cents"`
	Currency         string        `json:"currency"`
	GatewayOrderID   string        `json:"gateway_order_id"`
	GatewayCaptureID *string       `json:"gateway_capture_id,omitempty"`
	Status           PaymentStatus `json:"status"`
	RefundStatus     RefundStatus  `json:"refund_status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
