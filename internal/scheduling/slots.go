package scheduling

import "time"

// Slot is one bookable 30-minute boundary offered to customers.
type Slot struct {
	Time    time.Time `json:"time"`
	Display string    `json:"display"`
}

// slotStep is the spacing between offered boundaries.
const slotStep = 30 * time.Minute

// exclusionRadius removes boundaries too close to an existing booking: a
// boundary within 120 minutes of a booked, non-terminal appointment would
// overlap its service window.
const exclusionRadius = 2 * time.Hour

// AvailableSlots enumerates every 30-minute boundary within business hours
// on the given date, then removes boundaries within 120 minutes of any of
// the booked times.  Callers pass the booked times of a single inspector to
// get that inspector's availability, or all non-terminal bookings for the
// date to get global availability.  The date's time-of-day component is
// ignored.
func AvailableSlots(date time.Time, booked []time.Time) []Slot {
	date = date.UTC()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var open, close int
	switch day.Weekday() {
	case time.Sunday:
		return []Slot{}
	case time.Saturday:
		open, close = saturdayOpen, saturdayClose
	default:
		open, close = weekdayOpenHour, weekdayCloseHour
	}

	slots := make([]Slot, 0, (close-open)*2)
	for t := day.Add(time.Duration(open) * time.Hour); t.Hour() < close; t = t.Add(slotStep) {
		if tooClose(t, booked) {
			continue
		}
		slots = append(slots, Slot{Time: t, Display: t.Format("15:04")})
	}
	return slots
}

// tooClose reports whether t lies within the exclusion radius of any booked
// time.
func tooClose(t time.Time, booked []time.Time) bool {
	for _, b := range booked {
		d := t.Sub(b.UTC())
		if d < 0 {
			d = -d
		}
		if d < exclusionRadius {
			return true
		}
	}
	return false
}
