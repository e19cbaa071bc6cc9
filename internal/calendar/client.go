package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/google"
)

// DefaultCalendarID is the calendar bookings are written to unless
// configured otherwise.
const DefaultCalendarID = "primary"

// Client implements booking.CalendarPort over the Google Calendar API.
// One client is scoped to a single account credential and a single
// booking calendar; it holds no booking state of its own.
type Client struct {
	svc        *gcal.Service
	account    string
	calendarID string
}

var _ booking.CalendarPort = (*Client)(nil)

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccount checks if a valid OAuth token exists for the
// specified account.
func HasTokenForAccount(account string) bool {
	return google.NewFileTokenProvider().HasTokenForAccount(account)
}

// NewClientForAccount creates a Calendar client authenticated for a
// specific account using the provided token provider. The credential is
// injected here rather than read from process globals so tests and the
// HTTP transport can scope it per request.
func NewClientForAccount(ctx context.Context, account, calendarID string, provider google.TokenProvider) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	token, err := provider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, booking.WrapError(booking.KindCredentialMissing, err,
			"no usable Google OAuth token for account %s", account)
	}

	conf := google.GetOAuthConfig()
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{ForceAttemptHTTP2: false}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, account: account, calendarID: calendarID}, nil
}

// NewClientFromToken creates a Calendar client from an already-extracted
// OAuth access token, as supplied by an HTTP caller's Bearer header.
func NewClientFromToken(ctx context.Context, accessToken, calendarID string) (*Client, error) {
	if accessToken == "" {
		return nil, booking.NewError(booking.KindCredentialMissing, "no backend credential supplied")
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, account: "bearer", calendarID: calendarID}, nil
}

// ListEvents returns all events overlapping the half-open interval
// [start, end) in the booking calendar. The Google API's timeMin/timeMax
// filter already uses exclusive-end semantics for timed events, matching
// the slot model.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time) ([]booking.Record, error) {
	events, err := c.svc.Events.List(c.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapAPIError("list events", err)
	}

	records := make([]booking.Record, 0, len(events.Items))
	for _, ev := range events.Items {
		records = append(records, toRecord(ev))
	}
	return records, nil
}

// InsertEvent creates a new calendar event for the given slot and
// returns it with the backend-assigned id.
func (c *Client) InsertEvent(ctx context.Context, in booking.EventInput) (*booking.Record, error) {
	event := &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start: &gcal.EventDateTime{
			DateTime: in.Slot.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &gcal.EventDateTime{
			DateTime: in.Slot.End.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, mapAPIError("insert event", err)
	}

	rec := toRecord(created)
	return &rec, nil
}

// DeleteEvent removes an event by id. Unknown and already-deleted ids
// map to NotFound.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapAPIError("delete event", err)
	}
	return nil
}

// GetEvent retrieves a single event by id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*booking.Record, error) {
	event, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, mapAPIError("get event", err)
	}
	// Cancelled events linger in the API with status "cancelled".
	if event.Status == "cancelled" {
		return nil, booking.NewError(booking.KindNotFound, "event %s not found", eventID)
	}

	rec := toRecord(event)
	return &rec, nil
}

// mapAPIError classifies a Google API failure into the domain error
// kinds the booking layer understands.
func mapAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound, http.StatusGone:
			return booking.WrapError(booking.KindNotFound, err, "calendar %s: record not found", op)
		case http.StatusUnauthorized, http.StatusForbidden:
			return booking.WrapError(booking.KindCredentialMissing, err, "calendar %s: credential rejected", op)
		}
	}
	return booking.WrapError(booking.KindBackendUnavailable, err, "calendar %s failed", op)
}
