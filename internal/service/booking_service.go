package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/model"
	"github.com/roadworthy/inspection-platform/internal/repository"
	"github.com/roadworthy/inspection-platform/internal/scheduling"
)

// BookingService creates, lists and cancels appointments.  Creation runs the
// conflict detector first, then inserts appointment and outbox event in one
// transaction; the (inspector_id, time_bucket) unique key catches the race
// the detector cannot.
type BookingService struct {
	appointments *repository.AppointmentRepo
	outbox       *repository.OutboxRepo
	source       string
}

// NewBookingService wires the service to its repositories.  source is the
// service name stamped into event metadata.
func NewBookingService(appointments *repository.AppointmentRepo, outbox *repository.OutboxRepo, source string) *BookingService {
	return &BookingService{appointments: appointments, outbox: outbox, source: source}
}

// CreateAppointmentInput is the validated request body for booking.
type CreateAppointmentInput struct {
	CustomerID  string
	VehicleID   string
	InspectorID string // optional
	ScheduledAt time.Time
	ServiceTier model.ServiceTier
}

// Create books an appointment.  Returns *ValidationError when the candidate
// breaks a scheduling rule, *ConflictError when the slot was taken
// concurrently or the daily cap is reached.
func (s *BookingService) Create(ctx context.Context, correlationID string, in CreateAppointmentInput) (*model.Appointment, error) {
	var errs []string
	if in.CustomerID == "" {
		errs = append(errs, "customer_id is required")
	}
	if in.VehicleID == "" {
		errs = append(errs, "vehicle_id is required")
	}
	if !in.ServiceTier.Valid() {
		errs = append(errs, "service_tier must be basic, standard or comprehensive")
	}

	now := time.Now().UTC()
	var existing []time.Time
	if in.InspectorID != "" {
		day := in.ScheduledAt.UTC()
		from := day.Add(-model.ServiceWindow)
		to := day.Add(model.ServiceWindow)
		var err error
		existing, err = s.appointments.ActiveTimesForInspector(ctx, in.InspectorID, from, to)
		if err != nil {
			return nil, fmt.Errorf("load inspector calendar: %w", err)
		}
	}
	res := scheduling.Validate(scheduling.Candidate{
		ScheduledAt: in.ScheduledAt,
		InspectorID: in.InspectorID,
	}, now, existing)
	errs = append(errs, res.Errors...)
	if len(errs) > 0 {
		return nil, &ValidationError{Violations: errs}
	}

	count, err := s.appointments.CountForDay(ctx, in.ScheduledAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("count daily bookings: %w", err)
	}
	if count >= scheduling.MaxAppointmentsPerDay {
		return nil, &ConflictError{Msg: "no capacity left on that day"}
	}

	appt := &model.Appointment{
		ID:            uuid.NewString(),
		CustomerID:    in.CustomerID,
		VehicleID:     in.VehicleID,
		ScheduledAt:   in.ScheduledAt.UTC(),
		ServiceTier:   in.ServiceTier,
		Status:        model.AppointmentPending,
		PaymentStatus: model.PaymentUnpaid,
	}
	if in.InspectorID != "" {
		id := in.InspectorID
		appt.InspectorID = &id
	}

	tx, err := s.appointments.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.appointments.CreateTx(ctx, tx, appt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ConflictError{Msg: "inspector is already booked in that time window"}
		}
		return nil, err
	}

	inspectorID := ""
	if appt.InspectorID != nil {
		inspectorID = *appt.InspectorID
	}
	env, err := event.New(s.source, correlationID, event.AppointmentCreated{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		VehicleID:     appt.VehicleID,
		InspectorID:   inspectorID,
		ScheduledAt:   appt.ScheduledAt,
		ServiceTier:   string(appt.ServiceTier),
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.AppendTx(ctx, tx, env); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now
	log.Printf("[booking] appointment %s created for %s (corr=%s)", appt.ID, appt.ScheduledAt.Format(time.RFC3339), correlationID)
	return appt, nil
}

// Get returns one appointment.  Customers may only see their own.
func (s *BookingService) Get(ctx context.Context, id, customerID string) (*model.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "appointment"}
		}
		return nil, err
	}
	if customerID != "" && appt.CustomerID != customerID {
		return nil, &ForbiddenError{Msg: "appointment belongs to another customer"}
	}
	return appt, nil
}

// List returns the caller's appointments.
func (s *BookingService) List(ctx context.Context, customerID string) ([]model.Appointment, error) {
	return s.appointments.ListByCustomer(ctx, customerID)
}

// Cancel soft-cancels an appointment and emits appointment.cancelled.
// Terminal appointments cannot be cancelled.
func (s *BookingService) Cancel(ctx context.Context, correlationID, id, customerID, reason string) error {
	tx, err := s.appointments.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	appt, err := s.appointments.GetByIDTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Resource: "appointment"}
		}
		return err
	}
	if customerID != "" && appt.CustomerID != customerID {
		return &ForbiddenError{Msg: "appointment belongs to another customer"}
	}
	if appt.Status == model.AppointmentCancelled {
		// Cancelling twice is fine, nothing to redo.
		return nil
	}
	if !appt.Status.CanTransition(model.AppointmentCancelled) {
		return &ConflictError{Msg: fmt.Sprintf("cannot cancel a %s appointment", appt.Status)}
	}

	if err := s.appointments.UpdateStatusTx(ctx, tx, id, model.AppointmentCancelled); err != nil {
		return err
	}
	env, err := event.New(s.source, correlationID, event.AppointmentCancelled{
		AppointmentID: id,
		Reason:        reason,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.AppendTx(ctx, tx, env); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[booking] appointment %s cancelled (corr=%s)", id, correlationID)
	return nil
}

// Slots enumerates bookable 30-minute boundaries for a date, minus slots too
// close to existing bookings.
func (s *BookingService) Slots(ctx context.Context, date time.Time, inspectorID string) ([]scheduling.Slot, error) {
	booked, err := s.appointments.BookedTimesForDate(ctx, date, inspectorID)
	if err != nil {
		return nil, err
	}
	return scheduling.AvailableSlots(date, booked), nil
}

// MarkPaid is invoked by the payment.completed consumer.  The whole
// state change (idempotency mark + appointment flip) runs in one transaction;
// a cancelled appointment stays cancelled and the payment is left for the
// refund path.
func (s *BookingService) MarkPaid(ctx context.Context, consumer string, processed *repository.ProcessedEventRepo, env event.Envelope, p event.PaymentCompleted) error {
	tx, err := s.appointments.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := processed.MarkTx(ctx, tx, consumer, env.EventID, env.EventType); err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			return nil
		}
		return err
	}

	appt, err := s.appointments.GetByIDTx(ctx, tx, p.AppointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[booking] payment.completed for unknown appointment %s, dropping", p.AppointmentID)
			return tx.Commit()
		}
		return err
	}
	if appt.Status == model.AppointmentCancelled {
		log.Printf("[booking] payment %s landed on cancelled appointment %s, leaving for refund", p.PaymentID, p.AppointmentID)
		return tx.Commit()
	}
	if appt.PaymentStatus == model.PaymentPaid {
		return tx.Commit()
	}

	if err := s.appointments.MarkPaidTx(ctx, tx, p.AppointmentID); err != nil {
		return err
	}
	env2, err := event.New(s.source, env.Metadata.CorrelationID, event.AppointmentConfirmed{
		AppointmentID: p.AppointmentID,
		PaymentID:     p.PaymentID,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.AppendTx(ctx, tx, env2); err != nil {
		return err
	}
	return tx.Commit()
}
