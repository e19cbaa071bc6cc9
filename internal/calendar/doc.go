// Package calendar adapts the Google Calendar API to the booking
// layer's CalendarPort. Clients are scoped to one account credential
// and one booking calendar; all error classification into domain error
// kinds happens here so upper layers never see googleapi types.
package calendar
