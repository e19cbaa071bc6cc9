package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mvollmer/tablebook/internal/logging"
)

// DefaultSlotDuration is the policy-configured length every reservation
// occupies. The backend treats any interval overlap as a conflict
// regardless of party size.
const DefaultSlotDuration = 120 * time.Minute

// Policy holds the booking policy knobs fixed at startup.
type Policy struct {
	// SlotDuration is the fixed length of every reservation slot.
	SlotDuration time.Duration

	// Location is the restaurant's time zone. Incoming date/time pairs
	// are interpreted in this zone before conversion to UTC.
	Location *time.Location
}

// Service orchestrates reservation create/cancel against the calendar
// backend. It owns the conflict policy: check-then-insert with the
// backend as the sole source of truth. Two concurrent callers can both
// observe "available" and both insert; closing that window would need a
// per-slot serializing lock or a backend-honored idempotency key, both
// of which could wrap Create without changing its contract.
type Service struct {
	port    CalendarPort
	checker *Checker
	policy  Policy
	logger  *slog.Logger
}

// NewService creates a reservation service over the given calendar port.
func NewService(port CalendarPort, policy Policy, logger *slog.Logger) *Service {
	if policy.SlotDuration <= 0 {
		policy.SlotDuration = DefaultSlotDuration
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		port:    port,
		checker: NewChecker(port),
		policy:  policy,
		logger:  logger,
	}
}

// SlotDuration returns the configured reservation length.
func (s *Service) SlotDuration() time.Duration {
	return s.policy.SlotDuration
}

// Create books a reservation. The slot is computed from the request's
// date and time, checked for conflicts, and inserted into the backend.
// A conflicting slot fails with SlotConflict carrying the conflicting
// records; no alternative slots are suggested. The insert is retried at
// most once with backoff on BackendUnavailable. If the first insert
// succeeded but its acknowledgment was lost, the retry can produce a
// duplicate booking; the backend is authoritative and this risk is
// accepted rather than hidden.
func (s *Service) Create(ctx context.Context, req ReservationRequest) (*Record, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	slot, err := ComputeSlot(req.Date, req.Time, s.policy.SlotDuration, s.policy.Location)
	if err != nil {
		return nil, err
	}

	avail, err := s.checker.IsAvailable(ctx, slot)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		conflict := NewError(KindSlotConflict,
			"slot %s–%s is already booked", slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339))
		conflict.Conflicts = avail.Conflicts
		return nil, conflict
	}

	in := EventInput{
		Summary:     ReservationSummary(req.CustomerName, req.PartySize),
		Description: req.Notes,
		Slot:        slot,
	}

	rec, err := retryTransient(ctx, func() (*Record, error) {
		return s.port.InsertEvent(ctx, in)
	})
	if err != nil {
		s.logger.Error("reservation insert failed",
			logging.Operation("create"), logging.Err(err))
		return nil, err
	}

	s.logger.Info("reservation created",
		logging.Operation("create"),
		slog.String(logging.KeyEventID, rec.EventID),
		slog.Time(logging.KeySlotStart, slot.Start),
		slog.String(logging.KeyCustomer, logging.AnonymizeCustomer(req.CustomerName)))

	return rec, nil
}

// Cancel deletes the reservation with the given backend event ID. The
// record is fetched first so the freed slot can be reported; an unknown
// ID yields NotFound from either the lookup or the delete, not a fatal
// error.
func (s *Service) Cancel(ctx context.Context, eventID string) (*Record, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, NewError(KindValidation, "event_id must not be empty")
	}

	rec, err := retryTransient(ctx, func() (*Record, error) {
		return s.port.GetEvent(ctx, eventID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.port.DeleteEvent(ctx, eventID); err != nil {
		return nil, err
	}

	s.logger.Info("reservation cancelled",
		logging.Operation("cancel"),
		slog.String(logging.KeyEventID, eventID))

	return rec, nil
}

// CheckAvailability answers a standalone availability query for the slot
// starting at (date, time) without booking anything.
func (s *Service) CheckAvailability(ctx context.Context, date, clock string) (Availability, TimeSlot, error) {
	slot, err := ComputeSlot(date, clock, s.policy.SlotDuration, s.policy.Location)
	if err != nil {
		return Availability{}, TimeSlot{}, err
	}

	avail, err := s.checker.IsAvailable(ctx, slot)
	if err != nil {
		return Availability{}, slot, err
	}
	return avail, slot, nil
}

// ReservationSummary builds the deterministic event summary for a
// reservation. Keeping this in one place lets cancellation and tests
// reproduce it exactly.
func ReservationSummary(customerName string, partySize int) string {
	return fmt.Sprintf("Reservation for %s (%d)", customerName, partySize)
}

// validateRequest enforces the service-level preconditions that the
// dispatcher's schema validation cannot express.
func validateRequest(req ReservationRequest) error {
	var violations []string
	if strings.TrimSpace(req.CustomerName) == "" {
		violations = append(violations, "customer_name must not be empty")
	}
	if req.PartySize < 1 {
		violations = append(violations, "party_size must be at least 1")
	}
	if len(violations) > 0 {
		e := NewError(KindValidation, "invalid reservation request")
		e.Violations = violations
		return e
	}
	return nil
}
