// Package google provides OAuth2 authentication and token management for
// the Google Calendar backend.
//
// Tokens are stored per account in the user cache directory (for the
// STDIO transport); HTTP transports instead pass a caller-supplied
// Bearer token straight through to the Calendar client.
//
// The TokenProvider interface allows different token sources to be
// plugged in without the calendar adapter knowing where tokens live.
package google
