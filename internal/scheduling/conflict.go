// Package scheduling implements the appointment conflict detector and slot
// enumeration.  Everything here is pure: callers load the relevant existing
// appointments and pass them in, so the rules can be tested without a
// database.  The detector is a best-effort pre-check; the unique key on
// (inspector_id, time_bucket) in the appointments table is the actual
// serialization point for concurrent bookings.
package scheduling

import (
	"fmt"
	"time"

	"github.com/roadworthy/inspection-platform/internal/model"
)

// Business hours per weekday.  Sunday is closed.
const (
	weekdayOpenHour  = 8  // Mon-Fri 08:00
	weekdayCloseHour = 18 // Mon-Fri 18:00
	saturdayOpen     = 9  // Sat 09:00
	saturdayClose    = 15 // Sat 15:00
)

// Advance-notice window for new bookings.
const (
	MinAdvanceNotice = 2 * time.Hour
	MaxAdvanceNotice = 90 * 24 * time.Hour
)

// MaxAppointmentsPerDay caps daily volume independent of slot math, as a
// second line of defense against over-subscription.
const MaxAppointmentsPerDay = 20

// Candidate is a proposed appointment to validate.
type Candidate struct {
	ScheduledAt time.Time
	InspectorID string // empty when no inspector is requested
}

// Result carries the outcome of validation.  All violated rules are
// collected, never short-circuited, so the caller can show every problem at
// once.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate applies the scheduling rules in order: not in the past, advance
// notice, business hours, inspector availability.  The existing slice holds
// the scheduled times of the inspector's non-cancelled, non-completed
// appointments; pass nil when the candidate has no inspector.
func Validate(c Candidate, now time.Time, existing []time.Time) Result {
	var errs []string
	at := c.ScheduledAt.UTC()
	now = now.UTC()

	if at.Before(now) {
		errs = append(errs, "appointment cannot be scheduled in the past")
	}

	switch lead := at.Sub(now); {
	case lead >= 0 && lead < MinAdvanceNotice:
		errs = append(errs, "appointments require at least 2 hours advance notice")
	case lead > MaxAdvanceNotice:
		errs = append(errs, "appointments cannot be booked more than 90 days in advance")
	}

	if msg := businessHoursViolation(at); msg != "" {
		errs = append(errs, msg)
	}

	for _, other := range existing {
		if overlaps(at, other) {
			errs = append(errs, fmt.Sprintf(
				"inspector is already booked around %s", other.UTC().Format("2006-01-02 15:04")))
			break
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// businessHoursViolation returns a message naming the exact allowed window
// when t falls outside business hours, or "" when t is acceptable.
func businessHoursViolation(t time.Time) string {
	h := t.Hour()
	switch t.Weekday() {
	case time.Sunday:
		return "closed on Sundays"
	case time.Saturday:
		if h < saturdayOpen || h >= saturdayClose {
			return "Saturday hours are 9 AM-3 PM"
		}
	default:
		if h < weekdayOpenHour || h >= weekdayCloseHour {
			return "weekday hours are 8 AM-6 PM"
		}
	}
	return ""
}

// overlaps reports whether two 2-hour service windows intersect.
func overlaps(a, b time.Time) bool {
	aEnd := a.Add(model.ServiceWindow)
	bEnd := b.Add(model.ServiceWindow)
	return a.Before(bEnd) && b.Before(aEnd)
}
