package model

import "time"

// InspectionStatus enumerates the checkpoint state machine:
// pending -> in_progress -> completed (terminal).
type InspectionStatus string

const (
	InspectionPending    InspectionStatus = "pending"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
)

// Result is the overall outcome of a completed inspection.  It stays empty
// until status is completed and is a pure function of checkpoint outcomes.
type Result string

const (
	ResultPass        Result = "pass"
	ResultFail        Result = "fail"
	ResultConditional Result = "conditional"
)

// CheckpointStatus is the outcome recorded for a single checkpoint.
type CheckpointStatus string

const (
	CheckpointPending CheckpointStatus = "pending"
	CheckpointPass    CheckpointStatus = "pass"
	CheckpointFail    CheckpointStatus = "fail"
	CheckpointWarning CheckpointStatus = "warning"
)

// ValidCheckpointStatus reports whether s is an accepted checkpoint outcome.
func ValidCheckpointStatus(s CheckpointStatus) bool {
	switch s {
	case CheckpointPending, CheckpointPass, CheckpointFail, CheckpointWarning:
		return true
	}
	return false
}

// RequiredCheckpoints is the fixed 9-item set every inspection starts with.
// Checkpoint names are unique within an inspection; re-submitting a name
// overwrites the existing row.
var RequiredCheckpoints = []string{
	"brakes",
	"lights",
	"tires",
	"engine",
	"suspension",
	"exhaust",
	"body",
	"interior",
	"documents",
}

// KnownCheckpoint reports whether name belongs to the required set.
func KnownCheckpoint(name string) bool {
	for _, n := range RequiredCheckpoints {
		if n == name {
			return true
		}
	}
	return false
}

// Checkpoint is one named inspection criterion.
type Checkpoint struct {
	Name      string           `json:"name"`
	Required  bool             `json:"required"`
	Status    CheckpointStatus `json:"status"`
	Notes     string           `json:"notes,omitempty"`
	PhotoRefs []string         `json:"photo_refs,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Inspection is the physical check performed against a paid appointment.
// Created by the payment.completed consumer, mutated only by the assigned
// inspector, immutable after completion.
type Inspection struct {
	ID            string           `json:"id"`
	AppointmentID string           `json:"appointment_id"`
	InspectorID   string           `json:"inspector_id"`
	Status        InspectionStatus `json:"status"`
	Result        *Result          `json:"result,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Checkpoints   []Checkpoint     `json:"checkpoints,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ComputeResult derives the overall result from a checkpoint set.  Priority
// is fail > conditional > pass: any required checkpoint that failed fails the
// inspection, otherwise more than two warnings make it conditional, otherwise
// it passes.  Deterministic and total: same inputs always yield the same
// result.
func ComputeResult(checkpoints []Checkpoint) Result {
	warnings := 0
	for _, cp := range checkpoints {
		if cp.Required && cp.Status == CheckpointFail {
			return ResultFail
		}
		if cp.Status == CheckpointWarning {
			warnings++
		}
	}
	if warnings > 2 {
		return ResultConditional
	}
	return ResultPass
}

// UnresolvedRequired lists required checkpoints still pending.  Completion is
// blocked while this is non-empty.
func UnresolvedRequired(checkpoints []Checkpoint) []string {
	var names []string
	for _, cp := range checkpoints {
		if cp.Required && cp.Status == CheckpointPending {
			names = append(names, cp.Name)
		}
	}
	return names
}
