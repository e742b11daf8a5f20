package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/roadworthy/inspection-platform/internal/model"
)

// InspectionRepo provides data access to inspections and their checkpoint
// child rows.  Checkpoints live in their own table with a primary key of
// (inspection_id, name), so re-submitting a checkpoint overwrites instead of
// duplicating.
type InspectionRepo struct {
	db *sql.DB
}

// NewInspectionRepo returns a new InspectionRepo bound to the given database.
func NewInspectionRepo(db *sql.DB) *InspectionRepo { return &InspectionRepo{db: db} }

// DB exposes the underlying handle for cross-repository transactions.
func (r *InspectionRepo) DB() *sql.DB { return r.db }

const inspectionColumns = `id, appointment_id, inspector_id, status, result,
       started_at, completed_at, created_at, updated_at`

// CreateTx inserts an inspection and seeds the required checkpoint set, all
// in one transaction.  The unique key on appointment_id makes a second
// insert for the same appointment fail with ErrDuplicate, which the
// payment.completed consumer treats as "already created".
func (r *InspectionRepo) CreateTx(ctx context.Context, tx *sql.Tx, ins *model.Inspection) error {
	var inspector any
	if ins.InspectorID != "" {
		inspector = ins.InspectorID
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO inspections (id, appointment_id, inspector_id, status) VALUES (?, ?, ?, ?)`,
		ins.ID, ins.AppointmentID, inspector, ins.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	if len(ins.Checkpoints) == 0 {
		return nil
	}
	q := `INSERT INTO checkpoints (inspection_id, name, required, status) VALUES `
	args := make([]any, 0, len(ins.Checkpoints)*4)
	for i, cp := range ins.Checkpoints {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?)"
		args = append(args, ins.ID, cp.Name, cp.Required, cp.Status)
	}
	_, err = tx.ExecContext(ctx, q, args...)
	return err
}

// GetByID loads an inspection with its checkpoints.
func (r *InspectionRepo) GetByID(ctx context.Context, id string) (*model.Inspection, error) {
	const q = `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = ?`
	ins, err := scanInspection(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	cps, err := r.checkpoints(ctx, id)
	if err != nil {
		return nil, err
	}
	ins.Checkpoints = cps
	return ins, nil
}

// GetByIDTx loads an inspection with a row lock; checkpoints are loaded
// without their own locks since only the assigned inspector mutates them.
func (r *InspectionRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Inspection, error) {
	const q = `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = ? FOR UPDATE`
	ins, err := scanInspection(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, checkpointSelect+` WHERE inspection_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	ins.Checkpoints, err = collectCheckpoints(rows)
	return ins, err
}

// GetByAppointment loads the inspection created for an appointment, if any.
func (r *InspectionRepo) GetByAppointment(ctx context.Context, appointmentID string) (*model.Inspection, error) {
	const q = `SELECT ` + inspectionColumns + ` FROM inspections WHERE appointment_id = ?`
	ins, err := scanInspection(r.db.QueryRowContext(ctx, q, appointmentID))
	if err != nil {
		return nil, err
	}
	cps, err := r.checkpoints(ctx, ins.ID)
	if err != nil {
		return nil, err
	}
	ins.Checkpoints = cps
	return ins, nil
}

func scanInspection(row rowScanner) (*model.Inspection, error) {
	var ins model.Inspection
	var inspector, result sql.NullString
	var started, completed sql.NullTime
	err := row.Scan(&ins.ID, &ins.AppointmentID, &inspector, &ins.Status, &result,
		&started, &completed, &ins.CreatedAt, &ins.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if inspector.Valid {
		ins.InspectorID = inspector.String
	}
	if result.Valid {
		res := model.Result(result.String)
		ins.Result = &res
	}
	if started.Valid {
		t := started.Time
		ins.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		ins.CompletedAt = &t
	}
	return &ins, nil
}

const checkpointSelect = `SELECT name, required, status, notes, photo_refs, updated_at FROM checkpoints`

func (r *InspectionRepo) checkpoints(ctx context.Context, inspectionID string) ([]model.Checkpoint, error) {
	rows, err := r.db.QueryContext(ctx, checkpointSelect+` WHERE inspection_id = ? ORDER BY name`, inspectionID)
	if err != nil {
		return nil, err
	}
	return collectCheckpoints(rows)
}

func collectCheckpoints(rows *sql.Rows) ([]model.Checkpoint, error) {
	defer rows.Close()
	var out []model.Checkpoint
	for rows.Next() {
		var cp model.Checkpoint
		var notes, photos sql.NullString
		if err := rows.Scan(&cp.Name, &cp.Required, &cp.Status, &notes, &photos, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		cp.Notes = notes.String
		if photos.Valid && photos.String != "" {
			cp.PhotoRefs = strings.Split(photos.String, ",")
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// StartTx moves a pending inspection to in_progress, recording the inspector
// and the start time.
func (r *InspectionRepo) StartTx(ctx context.Context, tx *sql.Tx, id, inspectorID string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inspections SET status = 'in_progress', inspector_id = ?, started_at = ?
         WHERE id = ? AND status = 'pending'`,
		inspectorID, at.UTC().Format("2006-01-02 15:04:05"), id)
	return err
}

// UpsertCheckpoint writes one checkpoint outcome.  The (inspection_id, name)
// primary key turns a re-submission into an overwrite.
func (r *InspectionRepo) UpsertCheckpoint(ctx context.Context, inspectionID string, cp model.Checkpoint) error {
	const q = `INSERT INTO checkpoints (inspection_id, name, required, status, notes, photo_refs)
               VALUES (?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE status = VALUES(status), notes = VALUES(notes),
                                       photo_refs = VALUES(photo_refs)`
	_, err := r.db.ExecContext(ctx, q,
		inspectionID, cp.Name, cp.Required, cp.Status, cp.Notes, strings.Join(cp.PhotoRefs, ","))
	return err
}

// CompleteTx records the computed result and the completion time.  The
// inspection is immutable afterwards; the status guard makes a repeated
// completion a no-op at the SQL level.
func (r *InspectionRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id string, result model.Result, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inspections SET status = 'completed', result = ?, completed_at = ?
         WHERE id = ? AND status = 'in_progress'`,
		result, at.UTC().Format("2006-01-02 15:04:05"), id)
	return err
}
