package booking

import (
	"time"
)

// Layouts accepted for reservation date and time-of-day input.
const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ComputeSlot converts a local (date, time-of-day) pair into a half-open
// UTC interval of the given duration. The time zone is an explicit
// parameter so results are deterministic across deployments; it is never
// inferred from the process locale. Pure function: identical inputs
// always yield identical slots.
func ComputeSlot(date, clock string, duration time.Duration, loc *time.Location) (TimeSlot, error) {
	if loc == nil {
		loc = time.UTC
	}
	if duration <= 0 {
		return TimeSlot{}, NewError(KindInvalidTime, "reservation duration must be positive, got %s", duration)
	}

	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return TimeSlot{}, WrapError(KindInvalidTime, err, "invalid date %q, expected YYYY-MM-DD", date)
	}

	tod, err := time.Parse(clockLayout, clock)
	if err != nil {
		return TimeSlot{}, WrapError(KindInvalidTime, err, "invalid time %q, expected HH:MM", clock)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(),
		tod.Hour(), tod.Minute(), 0, 0, loc).UTC()

	return TimeSlot{Start: start, End: start.Add(duration)}, nil
}
