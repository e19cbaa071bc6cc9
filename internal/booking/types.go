package booking

import (
	"context"
	"time"
)

// TimeSlot is a half-open UTC interval [Start, End) that a reservation
// occupies. Start is always strictly before End.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the slot.
func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether the two half-open intervals intersect.
// An event that ends exactly when the other starts does not overlap.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// ReservationRequest is the validated input for creating a reservation.
type ReservationRequest struct {
	CustomerName string
	PartySize    int
	Date         string // ISO date, e.g. "2025-03-10"
	Time         string // local time of day, e.g. "19:00"
	Notes        string
}

// Record is a reservation as stored by the calendar backend. The backend
// is the sole durable store; records are only ever held transiently here.
type Record struct {
	EventID string
	Slot    TimeSlot
	Summary string
	Notes   string
}

// EventInput carries the fields for inserting a new calendar event.
type EventInput struct {
	Summary     string
	Description string
	Slot        TimeSlot
}

// CalendarPort is the interface to the external calendar backend. The
// backend is shared with other writers, so every read reflects a point
// in time and results must never be cached across calls.
type CalendarPort interface {
	// ListEvents returns all events overlapping the half-open interval
	// [start, end) in the booking calendar.
	ListEvents(ctx context.Context, start, end time.Time) ([]Record, error)

	// InsertEvent creates a new event and returns it with the
	// backend-assigned event ID.
	InsertEvent(ctx context.Context, in EventInput) (*Record, error)

	// DeleteEvent removes an event. Deleting an unknown ID yields a
	// NotFound error.
	DeleteEvent(ctx context.Context, eventID string) error

	// GetEvent retrieves a single event by ID.
	GetEvent(ctx context.Context, eventID string) (*Record, error)
}
