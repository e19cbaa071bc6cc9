package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestService(port *fakePort) *Service {
	return NewService(port, Policy{SlotDuration: 2 * time.Hour, Location: time.UTC},
		slog.New(slog.DiscardHandler))
}

func janeDoe() ReservationRequest {
	return ReservationRequest{
		CustomerName: "Jane Doe",
		PartySize:    4,
		Date:         "2025-03-10",
		Time:         "19:00",
	}
}

func TestCreateOnEmptyCalendar(t *testing.T) {
	port := newFakePort()
	svc := newTestService(port)

	rec, err := svc.Create(context.Background(), janeDoe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.EventID == "" {
		t.Error("expected a backend-assigned event id")
	}
	if rec.Summary != "Reservation for Jane Doe (4)" {
		t.Errorf("unexpected summary %q", rec.Summary)
	}
	if got := rec.Slot.Start.Format(time.RFC3339); got != "2025-03-10T19:00:00Z" {
		t.Errorf("unexpected slot start %s", got)
	}
	if rec.Slot.Duration() != 2*time.Hour {
		t.Errorf("slot should use the policy duration, got %s", rec.Slot.Duration())
	}

	// The booked slot must now report unavailable.
	avail, _, err := svc.CheckAvailability(context.Background(), "2025-03-10", "19:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if avail.Available {
		t.Error("slot should be unavailable after booking")
	}
}

func TestCreateSecondBookingConflicts(t *testing.T) {
	port := newFakePort()
	svc := newTestService(port)

	first, err := svc.Create(context.Background(), janeDoe())
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := janeDoe()
	second.CustomerName = "John Smith"
	_, err = svc.Create(context.Background(), second)
	if err == nil {
		t.Fatal("second booking of the same slot must fail")
	}
	if !IsKind(err, KindSlotConflict) {
		t.Fatalf("expected slot_conflict, got %v", KindOf(err))
	}

	var de *Error
	if !errors.As(err, &de) {
		t.Fatal("expected a domain error")
	}
	if len(de.Conflicts) != 1 || de.Conflicts[0].EventID != first.EventID {
		t.Errorf("conflict must include the first booking's record, got %+v", de.Conflicts)
	}
	if port.insertCalls != 1 {
		t.Errorf("conflicting create must not reach insert, got %d inserts", port.insertCalls)
	}
}

func TestCreateCancelRoundTrip(t *testing.T) {
	port := newFakePort()
	svc := newTestService(port)
	ctx := context.Background()

	rec, err := svc.Create(ctx, janeDoe())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.Cancel(ctx, rec.EventID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	avail, _, err := svc.CheckAvailability(ctx, "2025-03-10", "19:00")
	if err != nil {
		t.Fatalf("availability check failed: %v", err)
	}
	if !avail.Available {
		t.Error("slot must be available again after cancellation")
	}
}

func TestCancelUnknownEvent(t *testing.T) {
	port := newFakePort()
	svc := newTestService(port)

	_, err := svc.Cancel(context.Background(), "no-such-event")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCancelEmptyID(t *testing.T) {
	svc := newTestService(newFakePort())

	_, err := svc.Cancel(context.Background(), "  ")
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateValidatesRequest(t *testing.T) {
	svc := newTestService(newFakePort())

	req := ReservationRequest{CustomerName: "   ", PartySize: 0, Date: "2025-03-10", Time: "19:00"}
	_, err := svc.Create(context.Background(), req)
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var de *Error
	if !errors.As(err, &de) {
		t.Fatal("expected domain error")
	}
	// Both violations must be reported at once.
	if len(de.Violations) != 2 {
		t.Errorf("expected 2 violations, got %v", de.Violations)
	}
}

func TestCreateInvalidTime(t *testing.T) {
	svc := newTestService(newFakePort())

	req := janeDoe()
	req.Date = "bogus"
	_, err := svc.Create(context.Background(), req)
	if !IsKind(err, KindInvalidTime) {
		t.Fatalf("expected invalid_time_input, got %v", err)
	}
}

func TestCreateRetriesInsertOnceOnTransientFailure(t *testing.T) {
	port := newFakePort()
	port.insertFails = []error{NewError(KindBackendUnavailable, "502 from backend")}
	svc := newTestService(port)

	rec, err := svc.Create(context.Background(), janeDoe())
	if err != nil {
		t.Fatalf("expected insert retry to succeed, got %v", err)
	}
	if rec.EventID == "" {
		t.Error("expected event id after retry")
	}
	if port.insertCalls != 2 {
		t.Errorf("expected 2 insert attempts, got %d", port.insertCalls)
	}
}

func TestCreateDoesNotRetrySlotConflict(t *testing.T) {
	port := newFakePort()
	svc := newTestService(port)
	ctx := context.Background()

	if _, err := svc.Create(ctx, janeDoe()); err != nil {
		t.Fatalf("setup create failed: %v", err)
	}
	listCallsAfterFirst := port.listCalls

	_, err := svc.Create(ctx, janeDoe())
	if !IsKind(err, KindSlotConflict) {
		t.Fatalf("expected slot_conflict, got %v", err)
	}
	// A conflict is a business outcome: exactly one availability read,
	// no retry loop.
	if port.listCalls != listCallsAfterFirst+1 {
		t.Errorf("conflict should not be retried, list calls went %d -> %d",
			listCallsAfterFirst, port.listCalls)
	}
}

func TestReservationSummary(t *testing.T) {
	got := ReservationSummary("Jane Doe", 4)
	if got != "Reservation for Jane Doe (4)" {
		t.Errorf("unexpected summary %q", got)
	}
	if !strings.Contains(ReservationSummary("O'Brien", 12), "O'Brien (12)") {
		t.Error("summary must embed name and size verbatim")
	}
}
