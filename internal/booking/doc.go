// Package booking holds the reservation domain: slot computation,
// availability checks, and the reservation service that orchestrates
// create/cancel against the calendar backend.
//
// The package defines the CalendarPort interface it consumes; the
// Google-backed implementation lives in internal/calendar so tests can
// substitute a fake backend without touching process globals.
//
// The backend is the sole durable store and is shared with other
// writers. The service therefore performs check-then-insert without
// claiming any exclusive lock, and a narrow double-booking window
// between concurrent callers is an accepted, documented limitation.
package booking
