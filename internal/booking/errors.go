package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so transports can map it to a protocol
// status without inspecting message text.
type Kind string

const (
	// KindValidation means the payload failed schema validation. The
	// error lists every violation, not just the first.
	KindValidation Kind = "validation_error"

	// KindUnknownTool means the requested tool name is not registered.
	KindUnknownTool Kind = "unknown_tool"

	// KindInvalidTime means date/time input did not parse to a valid
	// calendar date or time of day.
	KindInvalidTime Kind = "invalid_time_input"

	// KindSlotConflict means the requested slot overlaps an existing
	// booking. This is a business outcome, never retried.
	KindSlotConflict Kind = "slot_conflict"

	// KindBackendUnavailable means the calendar backend could not be
	// reached or answered with a transient failure.
	KindBackendUnavailable Kind = "backend_unavailable"

	// KindNotFound means the referenced record does not exist.
	KindNotFound Kind = "not_found"

	// KindCredentialMissing means no usable backend credential was
	// supplied with the request.
	KindCredentialMissing Kind = "credential_missing"
)

// Error is the domain error type. Every failure surfaced to a caller
// carries a Kind; Violations and Conflicts are populated for the
// validation and slot-conflict kinds respectively.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Conflicts  []Record
	cause      error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return e.Message + ": " + strings.Join(e.Violations, "; ")
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a domain error of the given kind.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a domain error that wraps an underlying cause.
func WrapError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the Kind from an error chain. Errors without a domain
// Kind report KindBackendUnavailable: an unclassified failure talking to
// the backend must never pass as a definitive answer.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindBackendUnavailable
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
