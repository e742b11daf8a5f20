package scheduling

import (
	"testing"
	"time"
)

func TestAvailableSlotsWeekday(t *testing.T) {
	// Tuesday: 08:00-18:00 at 30-minute steps = 20 boundaries.
	day := time.Date(2024, 12, 17, 0, 0, 0, 0, time.UTC)
	slots := AvailableSlots(day, nil)
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	if got := slots[0].Display; got != "08:00" {
		t.Fatalf("expected first slot 08:00, got %s", got)
	}
	if got := slots[len(slots)-1].Display; got != "17:30" {
		t.Fatalf("expected last slot 17:30, got %s", got)
	}
}

func TestAvailableSlotsSaturday(t *testing.T) {
	day := time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC)
	slots := AvailableSlots(day, nil)
	// 09:00-15:00 = 12 boundaries.
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
}

func TestAvailableSlotsSundayEmpty(t *testing.T) {
	day := time.Date(2024, 12, 22, 0, 0, 0, 0, time.UTC)
	if slots := AvailableSlots(day, nil); len(slots) != 0 {
		t.Fatalf("expected no Sunday slots, got %d", len(slots))
	}
}

func TestAvailableSlotsExcludesAroundBooking(t *testing.T) {
	day := time.Date(2024, 12, 17, 0, 0, 0, 0, time.UTC)
	booked := []time.Time{time.Date(2024, 12, 17, 12, 0, 0, 0, time.UTC)}
	slots := AvailableSlots(day, booked)

	// Boundaries strictly within 120 minutes of 12:00 (10:30 .. 13:30) are
	// removed; 10:00 and 14:00 survive.
	for _, s := range slots {
		d := s.Time.Sub(booked[0])
		if d < 0 {
			d = -d
		}
		if d < 2*time.Hour {
			t.Fatalf("slot %s is inside the exclusion radius", s.Display)
		}
	}
	want := map[string]bool{"10:00": false, "14:00": false}
	for _, s := range slots {
		if _, ok := want[s.Display]; ok {
			want[s.Display] = true
		}
		if s.Display == "12:00" || s.Display == "11:00" || s.Display == "13:00" {
			t.Fatalf("slot %s should have been excluded", s.Display)
		}
	}
	for k, seen := range want {
		if !seen {
			t.Fatalf("expected boundary %s to remain available", k)
		}
	}
}

func TestAvailableSlotsIgnoresTimeOfDay(t *testing.T) {
	a := AvailableSlots(time.Date(2024, 12, 17, 0, 0, 0, 0, time.UTC), nil)
	b := AvailableSlots(time.Date(2024, 12, 17, 16, 45, 12, 0, time.UTC), nil)
	if len(a) != len(b) {
		t.Fatalf("slot count depends on time of day: %d vs %d", len(a), len(b))
	}
}
