package reservation_tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/dispatch"
	"github.com/mvollmer/tablebook/internal/instrumentation"
	"github.com/mvollmer/tablebook/internal/schema"
)

// fakeService implements dispatch.ReservationService for handler tests.
type fakeService struct {
	createErr error
	cancelErr error
	available bool
	record    booking.Record
}

func (f *fakeService) Create(ctx context.Context, req booking.ReservationRequest) (*booking.Record, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	rec := f.record
	return &rec, nil
}

func (f *fakeService) Cancel(ctx context.Context, eventID string) (*booking.Record, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	rec := f.record
	rec.EventID = eventID
	return &rec, nil
}

func (f *fakeService) CheckAvailability(ctx context.Context, date, clock string) (booking.Availability, booking.TimeSlot, error) {
	slot := f.record.Slot
	return booking.Availability{Available: f.available}, slot, nil
}

func testDispatcher(t *testing.T, svc dispatch.ReservationService) *dispatch.Dispatcher {
	t.Helper()
	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return dispatch.New(registry, dispatch.StaticResolver(svc), slog.Default())
}

func testRecord() booking.Record {
	start := time.Date(2026, 9, 12, 19, 0, 0, 0, time.UTC)
	return booking.Record{
		EventID: "evt-123",
		Summary: "Reservation for Ada Lovelace (4)",
		Slot:    booking.TimeSlot{Start: start, End: start.Add(2 * time.Hour)},
	}
}

func decodeEnvelope(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	var env map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &env); err != nil {
		t.Fatalf("result is not a JSON envelope: %v", err)
	}
	return env
}

func TestHandleToolCall_CreateSuccess(t *testing.T) {
	d := testDispatcher(t, &fakeService{record: testRecord()})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"customer_name": "Ada Lovelace",
		"party_size":    float64(4),
		"date":          "2026-09-12",
		"time":          "19:00",
	}

	result, err := handleToolCall(context.Background(), d, schema.ToolCreateReservation, req)
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %v", result.Content)
	}

	env := decodeEnvelope(t, result)
	if env["success"] != true {
		t.Errorf("expected success envelope, got %v", env)
	}
	details, _ := env["details"].(map[string]interface{})
	if details["event_id"] != "evt-123" {
		t.Errorf("expected event_id evt-123, got %v", details["event_id"])
	}
}

func TestHandleToolCall_ValidationFailure(t *testing.T) {
	d := testDispatcher(t, &fakeService{record: testRecord()})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"customer_name": "Ada Lovelace",
	}

	result, err := handleToolCall(context.Background(), d, schema.ToolCreateReservation, req)
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing fields")
	}

	env := decodeEnvelope(t, result)
	if env["success"] != false {
		t.Errorf("expected failure envelope, got %v", env)
	}
	if env["error_kind"] != string(booking.KindValidation) {
		t.Errorf("expected validation_error kind, got %v", env["error_kind"])
	}
}

func TestHandleToolCall_SlotConflict(t *testing.T) {
	conflictErr := booking.NewError(booking.KindSlotConflict, "slot already booked")
	d := testDispatcher(t, &fakeService{createErr: conflictErr, record: testRecord()})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"customer_name": "Ada Lovelace",
		"party_size":    float64(4),
		"date":          "2026-09-12",
		"time":          "19:00",
	}

	result, err := handleToolCall(context.Background(), d, schema.ToolCreateReservation, req)
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for conflict")
	}

	env := decodeEnvelope(t, result)
	if env["error_kind"] != string(booking.KindSlotConflict) {
		t.Errorf("expected slot_conflict kind, got %v", env["error_kind"])
	}
}

func TestHandleToolCall_CancelSuccess(t *testing.T) {
	d := testDispatcher(t, &fakeService{record: testRecord()})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"event_id": "evt-456",
	}

	result, err := handleToolCall(context.Background(), d, schema.ToolCancelReservation, req)
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %v", result.Content)
	}

	env := decodeEnvelope(t, result)
	details, _ := env["details"].(map[string]interface{})
	if details["event_id"] != "evt-456" {
		t.Errorf("expected cancelled event id evt-456, got %v", details["event_id"])
	}
}

func TestHandleToolCall_UnknownTool(t *testing.T) {
	d := testDispatcher(t, &fakeService{record: testRecord()})

	req := mcp.CallToolRequest{}

	result, err := handleToolCall(context.Background(), d, "no_such_tool", req)
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown tool")
	}

	env := decodeEnvelope(t, result)
	if env["error_kind"] != string(booking.KindUnknownTool) {
		t.Errorf("expected unknown_tool kind, got %v", env["error_kind"])
	}
}

func TestHandleToolCall_ResolverError(t *testing.T) {
	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	resolver := func(ctx context.Context) (dispatch.ReservationService, error) {
		return nil, booking.NewError(booking.KindCredentialMissing, "no token stored")
	}
	d := dispatch.New(registry, resolver, slog.Default())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"date": "2026-09-12",
		"time": "19:00",
	}

	result, err := handleToolCall(context.Background(), d, schema.ToolCheckAvailability, req)
	if err != nil {
		t.Fatalf("expected no transport error, got %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when credentials are missing")
	}

	env := decodeEnvelope(t, result)
	if env["error_kind"] != string(booking.KindCredentialMissing) {
		t.Errorf("expected credential_missing kind, got %v", env["error_kind"])
	}
}

func TestOperationForTool(t *testing.T) {
	tests := []struct {
		tool     string
		expected string
	}{
		{schema.ToolCreateReservation, instrumentation.OperationInsert},
		{schema.ToolCheckAvailability, instrumentation.OperationList},
		{schema.ToolCancelReservation, instrumentation.OperationDelete},
		{"unknown", ""},
	}

	for _, tt := range tests {
		if got := operationForTool(tt.tool); got != tt.expected {
			t.Errorf("operationForTool(%q) = %q, expected %q", tt.tool, got, tt.expected)
		}
	}
}
