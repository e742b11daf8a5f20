// Package model defines the domain types shared by the services in this
// repository.  Records that mirror table rows live in the repository layer;
// these types carry business meaning and JSON shapes.
package model

import "time"

// AppointmentStatus enumerates the lifecycle states of an appointment.
// Transitions are monotonic (pending -> confirmed -> in_progress ->
// completed) except for cancelled, which is reachable from any non-terminal
// state.  Appointments are never deleted, only soft-cancelled.
type AppointmentStatus string

const (
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

// CanTransition reports whether moving from s to next respects the monotonic
// ordering.  Cancellation is allowed from any non-terminal state.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	if next == AppointmentCancelled {
		return !s.Terminal()
	}
	order := map[AppointmentStatus]int{
		AppointmentPending:    0,
		AppointmentConfirmed:  1,
		AppointmentInProgress: 2,
		AppointmentCompleted:  3,
	}
	from, ok1 := order[s]
	to, ok2 := order[next]
	return ok1 && ok2 && to == from+1
}

// PaymentState enumerates the payment status carried on an appointment.
type PaymentState string

const (
	PaymentUnpaid   PaymentState = "unpaid"
	PaymentPaid     PaymentState = "paid"
	PaymentRefunded PaymentState = "refunded"
)

// ServiceTier selects the scope (and price) of an inspection.
type ServiceTier string

const (
	TierBasic         ServiceTier = "basic"
	TierStandard      ServiceTier = "standard"
	TierComprehensive ServiceTier = "comprehensive"
)

// PriceCents returns the checkout amount for the tier.  Unknown tiers price
// as standard; tier validity is checked at booking time.
func (t ServiceTier) PriceCents() uint32 {
	switch t {
	case TierBasic:
		return 4900
	case TierComprehensive:
		return 12900
	default:
		return 7900
	}
}

// Valid reports whether t is one of the known tiers.
func (t ServiceTier) Valid() bool {
	switch t {
	case TierBasic, TierStandard, TierComprehensive:
		return true
	}
	return false
}

// ServiceWindow is the length of the slot one appointment occupies on an
// inspector's calendar.  At most one non-cancelled appointment may occupy a
// given inspector's window.
const ServiceWindow = 2 * time.Hour

// Appointment is a booked vehicle safety check.  Created by the booking
// service; payment status is flipped by the payment.completed consumer and
// status advances as the inspection progresses.
type Appointment struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customer_id"`
	VehicleID     string            `json:"vehicle_id"`
	InspectorID   *string           `json:"inspector_id,omitempty"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	ServiceTier   ServiceTier       `json:"service_tier"`
	Status        AppointmentStatus `json:"status"`
	PaymentStatus PaymentState      `json:"payment_status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TimeBucket returns the 2-hour bucket label for a scheduled time.  The
// (inspector_id, time_bucket) unique key serializes concurrent bookings; the
// bucket is coarser than the exact overlap rule, which the conflict detector
// enforces up front.
func TimeBucket(t time.Time) string {
	return t.UTC().Truncate(ServiceWindow).Format("2006-01-02T15:04")
}
