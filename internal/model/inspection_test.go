package model

import (
	"testing"
	"time"
)

func checkpointSet(statuses map[string]CheckpointStatus) []Checkpoint {
	out := make([]Checkpoint, 0, len(RequiredCheckpoints))
	for _, name := range RequiredCheckpoints {
		st, ok := statuses[name]
		if !ok {
			st = CheckpointPass
		}
		out = append(out, Checkpoint{Name: name, Required: true, Status: st})
	}
	return out
}

func TestComputeResultAllPass(t *testing.T) {
	if got := ComputeResult(checkpointSet(nil)); got != ResultPass {
		t.Fatalf("expected pass, got %s", got)
	}
}

func TestComputeResultRequiredFailWins(t *testing.T) {
	cps := checkpointSet(map[string]CheckpointStatus{
		"brakes": CheckpointFail,
		"lights": CheckpointWarning,
		"tires":  CheckpointWarning,
		"engine": CheckpointWarning,
	})
	if got := ComputeResult(cps); got != ResultFail {
		t.Fatalf("a failed required checkpoint must fail the inspection, got %s", got)
	}
}

func TestComputeResultWarningThreshold(t *testing.T) {
	two := checkpointSet(map[string]CheckpointStatus{
		"lights": CheckpointWarning,
		"tires":  CheckpointWarning,
	})
	if got := ComputeResult(two); got != ResultPass {
		t.Fatalf("two warnings should still pass, got %s", got)
	}
	three := checkpointSet(map[string]CheckpointStatus{
		"lights": CheckpointWarning,
		"tires":  CheckpointWarning,
		"engine": CheckpointWarning,
	})
	if got := ComputeResult(three); got != ResultConditional {
		t.Fatalf("three warnings should be conditional, got %s", got)
	}
}

func TestComputeResultDeterministic(t *testing.T) {
	cps := checkpointSet(map[string]CheckpointStatus{
		"lights": CheckpointWarning,
		"body":   CheckpointWarning,
		"tires":  CheckpointWarning,
	})
	first := ComputeResult(cps)
	for i := 0; i < 5; i++ {
		if got := ComputeResult(cps); got != first {
			t.Fatalf("result changed between calls: %s vs %s", first, got)
		}
	}
}

func TestUnresolvedRequired(t *testing.T) {
	cps := checkpointSet(map[string]CheckpointStatus{
		"engine":    CheckpointPending,
		"documents": CheckpointPending,
	})
	pending := UnresolvedRequired(cps)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %v", pending)
	}
	if got := UnresolvedRequired(checkpointSet(nil)); got != nil {
		t.Fatalf("expected none pending, got %v", got)
	}
}

func TestAppointmentTransitions(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		ok       bool
	}{
		{AppointmentPending, AppointmentConfirmed, true},
		{AppointmentConfirmed, AppointmentInProgress, true},
		{AppointmentInProgress, AppointmentCompleted, true},
		{AppointmentPending, AppointmentInProgress, false},
		{AppointmentCompleted, AppointmentConfirmed, false},
		{AppointmentPending, AppointmentCancelled, true},
		{AppointmentInProgress, AppointmentCancelled, true},
		{AppointmentCompleted, AppointmentCancelled, false},
		{AppointmentCancelled, AppointmentCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTimeBucketAlignsToTwoHours(t *testing.T) {
	cases := map[string]string{
		"2026-01-05T08:00:00Z": "2026-01-05T08:00",
		"2026-01-05T09:30:00Z": "2026-01-05T08:00",
		"2026-01-05T10:00:00Z": "2026-01-05T10:00",
	}
	for in, want := range cases {
		ts, err := time.Parse(time.RFC3339, in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := TimeBucket(ts); got != want {
			t.Errorf("TimeBucket(%s) = %s, want %s", in, got, want)
		}
	}
}
