package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/dispatch"
	"github.com/mvollmer/tablebook/internal/server"
)

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
	return booking.Availability{Available: f.available}, f.record.Slot, nil
}

func testRecord() booking.Record {
	start := time.Date(2026, 9, 12, 19, 0, 0, 0, time.UTC)
	return booking.Record{
		EventID: "evt-123",
		Summary: "Reservation for Ada Lovelace (4)",
		Slot:    booking.TimeSlot{Start: start, End: start.Add(2 * time.Hour)},
	}
}

func newTestGateway(t *testing.T, svc dispatch.ReservationService) *Gateway {
	t.Helper()

	sc, err := server.NewServerContext(context.Background(), "", booking.Policy{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	g, err := New(sc, "tablebook", "test")
	require.NoError(t, err)
	t.Cleanup(g.Close)

	g.SetServiceFactory(func(ctx context.Context, token string) (dispatch.ReservationService, error) {
		return svc, nil
	})
	return g
}

func doRequest(t *testing.T, g *Gateway, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGatewayInfo(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	rec := doRequest(t, g, http.MethodGet, "/mcp", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "tablebook", body["name"])
	assert.Equal(t, "test", body["version"])
}

func TestGatewayHealthEndpoints(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	rec := doRequest(t, g, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = doRequest(t, g, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	g.Close()
	rec = doRequest(t, g, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGatewayListTools(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	rec := doRequest(t, g, http.MethodGet, "/mcp/tools", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	tools, ok := body["tools"].([]interface{})
	require.True(t, ok, "tools should be a list")
	require.Len(t, tools, 3)

	first, ok := tools[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "create_reservation", first["name"])

	schema, ok := first["input_schema"].(map[string]interface{})
	require.True(t, ok, "tool should carry an input schema")
	assert.Equal(t, "object", schema["type"])
}

func TestGatewayRunTool_CreateSuccess(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	payload := `{"customer_name":"Ada Lovelace","party_size":4,"date":"2026-09-12","time":"19:00"}`
	rec := doRequest(t, g, http.MethodPost, "/mcp/run/create_reservation", "token-1", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "evt-123", details["event_id"])
}

func TestGatewayRunTool_MissingToken(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	payload := `{"customer_name":"Ada Lovelace","party_size":4,"date":"2026-09-12","time":"19:00"}`
	rec := doRequest(t, g, http.MethodPost, "/mcp/run/create_reservation", "", payload)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(booking.KindCredentialMissing), body["error_kind"])
}

func TestGatewayRunTool_ValidationError(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	rec := doRequest(t, g, http.MethodPost, "/mcp/run/create_reservation", "token-1", `{"customer_name":"Ada"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(booking.KindValidation), body["error_kind"])
	violations, ok := body["violations"].([]interface{})
	require.True(t, ok, "validation failure should list violations")
	assert.NotEmpty(t, violations)
}

func TestGatewayRunTool_MalformedBody(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	rec := doRequest(t, g, http.MethodPost, "/mcp/run/create_reservation", "token-1", `{"broken`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(booking.KindValidation), body["error_kind"])
}

func TestGatewayRunTool_UnknownTool(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	rec := doRequest(t, g, http.MethodPost, "/mcp/run/no_such_tool", "token-1", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(booking.KindUnknownTool), body["error_kind"])
}

func TestGatewayRunTool_Conflict(t *testing.T) {
	conflictErr := booking.NewError(booking.KindSlotConflict, "slot already booked")
	conflictErr.Conflicts = []booking.Record{testRecord()}
	g := newTestGateway(t, &fakeService{createErr: conflictErr, record: testRecord()})

	payload := `{"customer_name":"Ada Lovelace","party_size":4,"date":"2026-09-12","time":"19:00"}`
	rec := doRequest(t, g, http.MethodPost, "/mcp/run/create_reservation", "token-1", payload)
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(booking.KindSlotConflict), body["error_kind"])
	conflicts, ok := body["conflicts"].([]interface{})
	require.True(t, ok, "conflict failure should list conflicting records")
	assert.Len(t, conflicts, 1)
}

func TestGatewayRunTool_CancelNotFound(t *testing.T) {
	notFound := booking.NewError(booking.KindNotFound, "no reservation with id evt-999")
	g := newTestGateway(t, &fakeService{cancelErr: notFound, record: testRecord()})

	rec := doRequest(t, g, http.MethodPost, "/mcp/run/cancel_reservation", "token-1", `{"event_id":"evt-999"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(booking.KindNotFound), body["error_kind"])
}

func TestGatewayRunTool_EmptyBody(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord(), available: true})

	// Empty body is an empty payload; required-field validation rejects it.
	rec := doRequest(t, g, http.MethodPost, "/mcp/run/check_availability", "token-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatewayCORSPreflight(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	req := httptest.NewRequest(http.MethodOptions, "/mcp/run/create_reservation", nil)
	req.Header.Set("Origin", "https://frontdesk.example")

	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://frontdesk.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestGatewayRequestIDPropagation(t *testing.T) {
	g := newTestGateway(t, &fakeService{record: testRecord()})

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	// Without an incoming id, one is issued.
	rec = doRequest(t, g, http.MethodGet, "/mcp", "", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"no header", "", ""},
		{"bearer token", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"bare scheme", "Bearer", ""},
		{"padded token", "Bearer  abc123 ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, bearerToken(req))
		})
	}
}
