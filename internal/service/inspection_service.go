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
)

// InspectionService owns the checkpoint state machine.  Inspections are
// created by the payment.completed consumer, started and mutated only by the
// assigned inspector, and sealed on completion.
type InspectionService struct {
	inspections  *repository.InspectionRepo
	appointments *repository.AppointmentRepo
	outbox       *repository.OutboxRepo
	processed    *repository.ProcessedEventRepo
	source       string
}

// NewInspectionService wires the service to its repositories.
func NewInspectionService(
	inspections *repository.InspectionRepo,
	appointments *repository.AppointmentRepo,
	outbox *repository.OutboxRepo,
	processed *repository.ProcessedEventRepo,
	source string,
) *InspectionService {
	return &InspectionService{
		inspections:  inspections,
		appointments: appointments,
		outbox:       outbox,
		processed:    processed,
		source:       source,
	}
}

// consumerName identifies this service in the processed-events ledger.
const consumerName = "inspection-service"

// CreateForPayment handles payment.completed: it creates a pending inspection
// with the full required checkpoint set.  Replays are absorbed three ways:
// the processed-events mark, the unique key on appointment_id, and the
// pre-check below.  An appointment cancelled after payment gets no
// inspection.
func (s *InspectionService) CreateForPayment(ctx context.Context, env event.Envelope, p event.PaymentCompleted) error {
	seen, err := s.processed.Seen(ctx, consumerName, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if _, err := s.inspections.GetByAppointment(ctx, p.AppointmentID); err == nil {
		// Natural-key check: an inspection already exists, e.g. the first
		// delivery crashed after commit but before ack.
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	tx, err := s.inspections.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.processed.MarkTx(ctx, tx, consumerName, env.EventID, env.EventType); err != nil {
		if errors.Is(err, repository.ErrAlreadyProcessed) {
			return nil
		}
		return err
	}

	appt, err := s.appointments.GetByIDTx(ctx, tx, p.AppointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[inspection] payment.completed for unknown appointment %s, dropping", p.AppointmentID)
			return tx.Commit()
		}
		return err
	}
	if appt.Status == model.AppointmentCancelled {
		log.Printf("[inspection] appointment %s cancelled after payment, no inspection created", p.AppointmentID)
		return tx.Commit()
	}

	ins := &model.Inspection{
		ID:            uuid.NewString(),
		AppointmentID: p.AppointmentID,
		Status:        model.InspectionPending,
	}
	if appt.InspectorID != nil {
		ins.InspectorID = *appt.InspectorID
	}
	for _, name := range model.RequiredCheckpoints {
		ins.Checkpoints = append(ins.Checkpoints, model.Checkpoint{
			Name:     name,
			Required: true,
			Status:   model.CheckpointPending,
		})
	}
	if err := s.inspections.CreateTx(ctx, tx, ins); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return tx.Commit()
		}
		return err
	}
	log.Printf("[inspection] inspection %s created for appointment %s (corr=%s)",
		ins.ID, p.AppointmentID, env.Metadata.CorrelationID)
	return tx.Commit()
}

// Start moves a pending inspection to in_progress.  The authenticated
// inspector becomes the assigned inspector; on appointments booked without
// one, the assignment is recorded here and the calendar unique key catches a
// clash with the inspector's other bookings.
func (s *InspectionService) Start(ctx context.Context, correlationID, inspectionID, inspectorID string) (*model.Inspection, error) {
	tx, err := s.inspections.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ins, err := s.inspections.GetByIDTx(ctx, tx, inspectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "inspection"}
		}
		return nil, err
	}
	if ins.Status != model.InspectionPending {
		return nil, &ConflictError{Msg: fmt.Sprintf("inspection is %s", ins.Status)}
	}
	if ins.InspectorID != "" && ins.InspectorID != inspectorID {
		return nil, &ForbiddenError{Msg: "inspection is assigned to another inspector"}
	}

	appt, err := s.appointments.GetByIDTx(ctx, tx, ins.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PaymentStatus != model.PaymentPaid {
		return nil, &ConflictError{Msg: "appointment is not paid"}
	}
	if appt.InspectorID == nil {
		if err := s.appointments.AssignInspectorTx(ctx, tx, appt.ID, inspectorID); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, &ConflictError{Msg: "inspector is already booked in that time window"}
			}
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := s.inspections.StartTx(ctx, tx, inspectionID, inspectorID, now); err != nil {
		return nil, err
	}
	if err := s.appointments.UpdateStatusTx(ctx, tx, appt.ID, model.AppointmentInProgress); err != nil {
		return nil, err
	}

	env, err := event.New(s.source, correlationID, event.InspectionStarted{
		InspectionID:  inspectionID,
		AppointmentID: ins.AppointmentID,
		InspectorID:   inspectorID,
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

	ins.Status = model.InspectionInProgress
	ins.InspectorID = inspectorID
	ins.StartedAt = &now
	log.Printf("[inspection] inspection %s started by %s (corr=%s)", inspectionID, inspectorID, correlationID)
	return ins, nil
}

// CheckpointInput is one submitted checkpoint outcome.
type CheckpointInput struct {
	Name      string
	Status    model.CheckpointStatus
	Notes     string
	PhotoRefs []string
}

// UpdateCheckpoint records a checkpoint outcome.  Only the assigned inspector
// may write, only while in_progress, and only for the known checkpoint names.
// Re-submitting a name overwrites the previous outcome.
func (s *InspectionService) UpdateCheckpoint(ctx context.Context, inspectionID, inspectorID string, in CheckpointInput) (*model.Inspection, error) {
	if !model.KnownCheckpoint(in.Name) {
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("unknown checkpoint %q", in.Name)}}
	}
	if !model.ValidCheckpointStatus(in.Status) {
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("invalid checkpoint status %q", in.Status)}}
	}

	ins, err := s.inspections.GetByID(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "inspection"}
		}
		return nil, err
	}
	if ins.InspectorID != inspectorID {
		return nil, &ForbiddenError{Msg: "inspection is assigned to another inspector"}
	}
	if ins.Status != model.InspectionInProgress {
		return nil, &ConflictError{Msg: fmt.Sprintf("inspection is %s", ins.Status)}
	}

	cp := model.Checkpoint{
		Name:      in.Name,
		Required:  true,
		Status:    in.Status,
		Notes:     in.Notes,
		PhotoRefs: in.PhotoRefs,
	}
	if err := s.inspections.UpsertCheckpoint(ctx, inspectionID, cp); err != nil {
		return nil, err
	}
	return s.inspections.GetByID(ctx, inspectionID)
}

// Complete seals the inspection.  Blocked while any required checkpoint is
// still pending; otherwise the overall result is computed from the checkpoint
// outcomes, the appointment completes, and inspection.completed goes to the
// outbox, all in one transaction.
func (s *InspectionService) Complete(ctx context.Context, correlationID, inspectionID, inspectorID string) (*model.Inspection, error) {
	tx, err := s.inspections.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ins, err := s.inspections.GetByIDTx(ctx, tx, inspectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "inspection"}
		}
		return nil, err
	}
	if ins.InspectorID != inspectorID {
		return nil, &ForbiddenError{Msg: "inspection is assigned to another inspector"}
	}
	if ins.Status == model.InspectionCompleted {
		return ins, nil
	}
	if ins.Status != model.InspectionInProgress {
		return nil, &ConflictError{Msg: fmt.Sprintf("inspection is %s", ins.Status)}
	}
	if pending := model.UnresolvedRequired(ins.Checkpoints); len(pending) > 0 {
		violations := make([]string, 0, len(pending))
		for _, name := range pending {
			violations = append(violations, fmt.Sprintf("checkpoint %q is still pending", name))
		}
		return nil, &ValidationError{Violations: violations}
	}

	result := model.ComputeResult(ins.Checkpoints)
	now := time.Now().UTC()
	if err := s.inspections.CompleteTx(ctx, tx, inspectionID, result, now); err != nil {
		return nil, err
	}
	if err := s.appointments.UpdateStatusTx(ctx, tx, ins.AppointmentID, model.AppointmentCompleted); err != nil {
		return nil, err
	}

	env, err := event.New(s.source, correlationID, event.InspectionCompleted{
		InspectionID:  inspectionID,
		AppointmentID: ins.AppointmentID,
		InspectorID:   inspectorID,
		Result:        string(result),
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

	ins.Status = model.InspectionCompleted
	ins.Result = &result
	ins.CompletedAt = &now
	log.Printf("[inspection] inspection %s completed with %s (corr=%s)", inspectionID, result, correlationID)
	return ins, nil
}

// Get loads one inspection with its checkpoints.
func (s *InspectionService) Get(ctx context.Context, id string) (*model.Inspection, error) {
	ins, err := s.inspections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "inspection"}
		}
		return nil, err
	}
	return ins, nil
}
