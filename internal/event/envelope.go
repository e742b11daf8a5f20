// Package event defines the envelope every cross-service fact is wrapped in,
// the closed set of event kinds, and the publisher/consumer plumbing over the
// shared topic exchange.  Delivery is at-least-once; consumers are expected
// to be idempotent.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped into every envelope so consumers can reject
// payload shapes they do not understand.
const SchemaVersion = 1

// Event types, dot-namespaced by topic.  Routing keys equal the event type,
// so consumers bind queues with patterns like "payment.*".
const (
	TypeAppointmentCreated   = "appointment.created"
	TypeAppointmentConfirmed = "appointment.confirmed"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypePaymentCompleted     = "payment.completed"
	TypePaymentFailed        = "payment.failed"
	TypeInspectionStarted    = "inspection.started"
	TypeInspectionCompleted  = "inspection.completed"
	TypeCertificateGenerated = "certificate.generated"
	TypeInvoiceCreated       = "invoice.created"
)

// Metadata identifies the producing service and threads the correlation id
// through the whole saga.
type Metadata struct {
	Source        string `json:"source"`
	CorrelationID string `json:"correlation_id"`
}

// Envelope is the wire format of a published fact.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
	Metadata      Metadata        `json:"metadata"`
}

// Payload is implemented by every event body.  Kind returns the event type
// the body belongs to, which keeps producer and envelope in agreement.
type Payload interface {
	Kind() string
}

// AppointmentCreated is published when the booking service accepts a
// candidate appointment.
type AppointmentCreated struct {
	AppointmentID string    `json:"appointment_id"`
	CustomerID    string    `json:"customer_id"`
	VehicleID     string    `json:"vehicle_id"`
	InspectorID   string    `json:"inspector_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	ServiceTier   string    `json:"service_tier"`
}

func (AppointmentCreated) Kind() string { return TypeAppointmentCreated }

// AppointmentConfirmed is published once payment lands and the appointment
// flips to confirmed/paid.
type AppointmentConfirmed struct {
	AppointmentID string `json:"appointment_id"`
	PaymentID     string `json:"payment_id"`
}

func (AppointmentConfirmed) Kind() string { return TypeAppointmentConfirmed }

// AppointmentCancelled is published on soft-cancel.  Downstream consumers
// must interpret it (e.g. suppress inspection creation for an appointment
// cancelled after payment).
type AppointmentCancelled struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

func (AppointmentCancelled) Kind() string { return TypeAppointmentCancelled }

// PaymentCompleted is published after a successful gateway capture.
type PaymentCompleted struct {
	PaymentID     string `json:"payment_id"`
	AppointmentID string `json:"appointment_id"`
	CaptureID     string `json:"capture_id"`
	AmountCents   uint32 `json:"amount_cents"`
	Currency      string `json:"currency"`
}

func (PaymentCompleted) Kind() string { return TypePaymentCompleted }

// PaymentFailed is published when the gateway declines or times out.
type PaymentFailed struct {
	PaymentID     string `json:"payment_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func (PaymentFailed) Kind() string { return TypePaymentFailed }

// InspectionStarted is published when the assigned inspector begins work.
type InspectionStarted struct {
	InspectionID  string `json:"inspection_id"`
	AppointmentID string `json:"appointment_id"`
	InspectorID   string `json:"inspector_id"`
}

func (InspectionStarted) Kind() string { return TypeInspectionStarted }

// InspectionCompleted carries the computed result.  Re-processing this event
// is the replay path for certificate/invoice generation.
type InspectionCompleted struct {
	InspectionID  string `json:"inspection_id"`
	AppointmentID string `json:"appointment_id"`
	InspectorID   string `json:"inspector_id"`
	Result        string `json:"result"`
}

func (InspectionCompleted) Kind() string { return TypeInspectionCompleted }

// CertificateGenerated is published when a pass result yields a certificate.
type CertificateGenerated struct {
	CertificateID     string    `json:"certificate_id"`
	CertificateNumber string    `json:"certificate_number"`
	InspectionID      string    `json:"inspection_id"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func (CertificateGenerated) Kind() string { return TypeCertificateGenerated }

// InvoiceCreated is published alongside the certificate.
type InvoiceCreated struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	PaymentID     string `json:"payment_id"`
	TotalCents    uint32 `json:"total_cents"`
}

func (InvoiceCreated) Kind() string { return TypeInvoiceCreated }

// New wraps a payload in an envelope.  source names the producing service;
// correlationID comes from the inbound request (middleware generates one when
// the caller did not supply a trace id).
func New(source, correlationID string, payload Payload) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", payload.Kind(), err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     payload.Kind(),
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Data:          data,
		Metadata:      Metadata{Source: source, CorrelationID: correlationID},
	}, nil
}

// ErrUnknownType is wrapped by Decode for event types outside the known set.
// Consumers treat it as "not for me" and acknowledge the message.
var ErrUnknownType = fmt.Errorf("unknown event type")

// Decode returns the typed payload for an envelope.  The switch is the
// single place new event kinds are registered; unknown types surface
// explicitly instead of being silently dropped.
func Decode(env Envelope) (Payload, error) {
	var p Payload
	switch env.EventType {
	case TypeAppointmentCreated:
		p = &AppointmentCreated{}
	case TypeAppointmentConfirmed:
		p = &AppointmentConfirmed{}
	case TypeAppointmentCancelled:
		p = &AppointmentCancelled{}
	case TypePaymentCompleted:
		p = &PaymentCompleted{}
	case TypePaymentFailed:
		p = &PaymentFailed{}
	case TypeInspectionStarted:
		p = &InspectionStarted{}
	case TypeInspectionCompleted:
		p = &InspectionCompleted{}
	case TypeCertificateGenerated:
		p = &CertificateGenerated{}
	case TypeInvoiceCreated:
		p = &InvoiceCreated{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, env.EventType)
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("unmarshal %s data: %w", env.EventType, err)
	}
	return p, nil
}
