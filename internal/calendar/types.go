package calendar

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/mvollmer/tablebook/internal/booking"
)

// toRecord converts a Google Calendar event into the booking layer's
// record shape. All-day events carry only a Date; those are normalized
// to midnight UTC so conflict checks still see them.
func toRecord(ev *gcal.Event) booking.Record {
	if ev == nil {
		return booking.Record{}
	}
	rec := booking.Record{
		EventID: ev.Id,
		Summary: ev.Summary,
		Notes:   ev.Description,
	}
	rec.Slot.Start = parseEventTime(ev.Start)
	rec.Slot.End = parseEventTime(ev.End)
	return rec
}

func parseEventTime(edt *gcal.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t.UTC()
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
