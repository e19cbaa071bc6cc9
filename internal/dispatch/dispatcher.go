package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/instrumentation"
	"github.com/mvollmer/tablebook/internal/logging"
	"github.com/mvollmer/tablebook/internal/schema"
)

// ReservationService is the slice of the booking service the dispatcher
// routes to. Accepting an interface keeps the dispatcher testable with a
// fake service.
type ReservationService interface {
	Create(ctx context.Context, req booking.ReservationRequest) (*booking.Record, error)
	Cancel(ctx context.Context, eventID string) (*booking.Record, error)
	CheckAvailability(ctx context.Context, date, clock string) (booking.Availability, booking.TimeSlot, error)
}

// ServiceResolver yields the reservation service for one invocation.
// Resolving per call lets the transport inject a request-scoped backend
// credential instead of a process-global client; a missing credential
// surfaces as a CredentialMissing domain error.
type ServiceResolver func(ctx context.Context) (ReservationService, error)

// StaticResolver wraps an already-constructed service, for transports
// (and tests) where the credential is fixed at startup.
func StaticResolver(svc ReservationService) ServiceResolver {
	return func(context.Context) (ReservationService, error) {
		return svc, nil
	}
}

// Dispatcher validates tool invocations against the schema registry and
// routes them to the reservation service. Each invocation moves through
// Received → Validated → Executing → Completed|Failed; both terminal
// states collapse into the one Result envelope.
type Dispatcher struct {
	registry *schema.Registry
	resolve  ServiceResolver
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// New creates a Dispatcher over the given registry and service resolver.
func New(registry *schema.Registry, resolve ServiceResolver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, resolve: resolve, logger: logger}
}

// SetMetrics attaches the reservation outcome recorder. Without it the
// dispatcher still works; outcomes just go unrecorded.
func (d *Dispatcher) SetMetrics(metrics *instrumentation.Metrics) {
	d.metrics = metrics
}

// Registry exposes the registry for discovery responses.
func (d *Dispatcher) Registry() *schema.Registry {
	return d.registry
}

// Dispatch runs one tool invocation end to end and always returns a
// terminal Result; errors are folded into the envelope, never panicked
// or swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, payload map[string]interface{}) Result {
	log := logging.WithTool(d.logger, toolName)

	def, ok := d.registry.Get(toolName)
	if !ok {
		return Fail(booking.NewError(booking.KindUnknownTool, "unknown tool %q", toolName))
	}

	if err := validatePayload(def, payload); err != nil {
		log.Info("invocation rejected", logging.Status(logging.StatusError), logging.Err(err))
		return Fail(err)
	}

	svc, err := d.resolve(ctx)
	if err != nil {
		return Fail(err)
	}

	var res Result
	switch toolName {
	case schema.ToolCreateReservation:
		res = d.createReservation(ctx, svc, payload)
	case schema.ToolCheckAvailability:
		res = d.checkAvailability(ctx, svc, payload)
	case schema.ToolCancelReservation:
		res = d.cancelReservation(ctx, svc, payload)
	default:
		// Registered but unrouted means the registry and this switch
		// have drifted; reject rather than fall through.
		res = Fail(booking.NewError(booking.KindUnknownTool, "tool %q has no handler", toolName))
	}

	d.recordOutcome(ctx, toolName, payload, res)

	if res.OK {
		log.Info("invocation completed", logging.Status(logging.StatusSuccess))
	} else {
		log.Info("invocation failed",
			logging.Status(logging.StatusError),
			slog.String("error_kind", string(res.Err.Kind)),
			logging.Err(res.Err))
	}
	return res
}

// recordOutcome counts the terminal outcome of reservation-affecting
// tools. Availability checks do not move the counter.
func (d *Dispatcher) recordOutcome(ctx context.Context, toolName string, payload map[string]interface{}, res Result) {
	if d.metrics == nil {
		return
	}

	switch toolName {
	case schema.ToolCreateReservation:
		switch {
		case res.OK:
			d.metrics.RecordReservation(ctx, instrumentation.OutcomeCreated)
			d.metrics.RecordPartySize(ctx, int64(intArg(payload, "party_size")))
		case res.Err != nil && res.Err.Kind == booking.KindSlotConflict:
			d.metrics.RecordReservation(ctx, instrumentation.OutcomeConflict)
		default:
			d.metrics.RecordReservation(ctx, instrumentation.OutcomeFailed)
		}
	case schema.ToolCancelReservation:
		if res.OK {
			d.metrics.RecordReservation(ctx, instrumentation.OutcomeCancelled)
		} else {
			d.metrics.RecordReservation(ctx, instrumentation.OutcomeFailed)
		}
	}
}

func (d *Dispatcher) createReservation(ctx context.Context, svc ReservationService, payload map[string]interface{}) Result {
	req := booking.ReservationRequest{
		CustomerName: stringArg(payload, "customer_name"),
		PartySize:    intArg(payload, "party_size"),
		Date:         stringArg(payload, "date"),
		Time:         stringArg(payload, "time"),
		Notes:        stringArg(payload, "notes"),
	}

	rec, err := svc.Create(ctx, req)
	if err != nil {
		return Fail(err)
	}

	return Succeed(
		fmt.Sprintf("Reservation created for %s on %s at %s for %d people.",
			req.CustomerName, req.Date, req.Time, req.PartySize),
		map[string]interface{}{
			"event_id":      rec.EventID,
			"customer_name": req.CustomerName,
			"party_size":    req.PartySize,
			"date":          req.Date,
			"time":          req.Time,
			"notes":         req.Notes,
			"start":         rec.Slot.Start.Format(time.RFC3339),
			"end":           rec.Slot.End.Format(time.RFC3339),
		})
}

func (d *Dispatcher) checkAvailability(ctx context.Context, svc ReservationService, payload map[string]interface{}) Result {
	date := stringArg(payload, "date")
	clock := stringArg(payload, "time")

	avail, slot, err := svc.CheckAvailability(ctx, date, clock)
	if err != nil {
		return Fail(err)
	}

	msg := fmt.Sprintf("The slot on %s at %s is available.", date, clock)
	if !avail.Available {
		msg = fmt.Sprintf("The slot on %s at %s is already booked.", date, clock)
	}

	return Succeed(msg, map[string]interface{}{
		"available": avail.Available,
		"date":      date,
		"time":      clock,
		"start":     slot.Start.Format(time.RFC3339),
		"end":       slot.End.Format(time.RFC3339),
		"conflicts": conflictDetails(avail.Conflicts),
	})
}

func (d *Dispatcher) cancelReservation(ctx context.Context, svc ReservationService, payload map[string]interface{}) Result {
	eventID := stringArg(payload, "event_id")

	rec, err := svc.Cancel(ctx, eventID)
	if err != nil {
		return Fail(err)
	}

	return Succeed(
		fmt.Sprintf("Reservation %s cancelled.", eventID),
		map[string]interface{}{
			"event_id": rec.EventID,
			"summary":  rec.Summary,
			"start":    rec.Slot.Start.Format(time.RFC3339),
			"end":      rec.Slot.End.Format(time.RFC3339),
		})
}

// validatePayload checks every declared field and collects all
// violations before failing, so a caller gets the complete correction
// list in one round trip.
func validatePayload(def schema.ToolDefinition, payload map[string]interface{}) error {
	var violations []string

	for _, name := range def.Input.Required {
		if _, present := payload[name]; !present {
			violations = append(violations, fmt.Sprintf("%s is required", name))
		}
	}

	for name, field := range def.Input.Properties {
		value, present := payload[name]
		if !present {
			continue
		}
		if msg := checkType(name, field.Type, value); msg != "" {
			violations = append(violations, msg)
		}
	}

	if len(violations) > 0 {
		err := booking.NewError(booking.KindValidation, "invalid payload")
		err.Violations = violations
		return err
	}
	return nil
}

func checkType(name string, ft schema.FieldType, value interface{}) string {
	switch ft {
	case schema.TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("%s must be a string", name)
		}
	case schema.TypeInteger:
		f, ok := asFloat(value)
		if !ok {
			return fmt.Sprintf("%s must be an integer", name)
		}
		if f != math.Trunc(f) {
			return fmt.Sprintf("%s must be an integer, got %v", name, value)
		}
	case schema.TypeNumber:
		if _, ok := asFloat(value); !ok {
			return fmt.Sprintf("%s must be a number", name)
		}
	}
	return ""
}

// asFloat accepts the numeric representations JSON decoding and MCP
// argument maps produce.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func stringArg(payload map[string]interface{}, name string) string {
	s, _ := payload[name].(string)
	return s
}

func intArg(payload map[string]interface{}, name string) int {
	f, _ := asFloat(payload[name])
	return int(f)
}

func conflictDetails(conflicts []booking.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, map[string]interface{}{
			"event_id": c.EventID,
			"summary":  c.Summary,
			"start":    c.Slot.Start.Format(time.RFC3339),
			"end":      c.Slot.End.Format(time.RFC3339),
		})
	}
	return out
}

// asDomainError normalizes any error into a *booking.Error so the
// envelope always carries a kind.
func asDomainError(err error) *booking.Error {
	var de *booking.Error
	if errors.As(err, &de) {
		return de
	}
	return booking.WrapError(booking.KindBackendUnavailable, err, "%s", err.Error())
}
