package booking

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxBackendTries bounds retries against the calendar backend: the
// original attempt plus at most one retry with backoff.
const maxBackendTries = 2

// Availability is the outcome of an availability check.
type Availability struct {
	Available bool
	Conflicts []Record
}

// Checker decides whether a time slot is free of conflicting bookings.
// Availability is inherently time-varying shared state, so every check
// re-queries the backend; nothing is cached across calls.
type Checker struct {
	port CalendarPort
}

// NewChecker creates a Checker over the given calendar port.
func NewChecker(port CalendarPort) *Checker {
	return &Checker{port: port}
}

// IsAvailable queries the backend for events overlapping the half-open
// interval [slot.Start, slot.End). An event ending exactly at the slot's
// start, or starting exactly at its end, does not conflict. A backend
// failure is surfaced, never treated as "available"; the read is
// idempotent and retried at most once with backoff.
func (c *Checker) IsAvailable(ctx context.Context, slot TimeSlot) (Availability, error) {
	events, err := retryTransient(ctx, func() ([]Record, error) {
		return c.port.ListEvents(ctx, slot.Start, slot.End)
	})
	if err != nil {
		return Availability{}, err
	}

	var conflicts []Record
	for _, ev := range events {
		if ev.Slot.Overlaps(slot) {
			conflicts = append(conflicts, ev)
		}
	}

	return Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// retryTransient runs op, retrying once with backoff if the failure is
// classified as BackendUnavailable. All other error kinds are permanent.
func retryTransient[T any](ctx context.Context, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !IsKind(err, KindBackendUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(maxBackendTries))
}
