package dispatch

import (
	"net/http"
	"time"

	"github.com/mvollmer/tablebook/internal/booking"
)

// Result is the terminal value of every invocation: either a success
// with a message and details, or a classified failure. Exactly one of
// the two shapes applies.
type Result struct {
	OK      bool
	Message string
	Details map[string]interface{}
	Err     *booking.Error
}

// Succeed builds a completed Result.
func Succeed(message string, details map[string]interface{}) Result {
	return Result{OK: true, Message: message, Details: details}
}

// Fail builds a failed Result, normalizing err into a domain error.
func Fail(err error) Result {
	return Result{Err: asDomainError(err)}
}

// Envelope is the wire form of a Result shared by every transport.
type Envelope struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message,omitempty"`
	Details    map[string]interface{}   `json:"details,omitempty"`
	Error      string                   `json:"error,omitempty"`
	ErrorKind  string                   `json:"error_kind,omitempty"`
	Violations []string                 `json:"violations,omitempty"`
	Conflicts  []map[string]interface{} `json:"conflicts,omitempty"`
}

// Envelope renders the Result for serialization.
func (r Result) Envelope() Envelope {
	if r.OK {
		return Envelope{Success: true, Message: r.Message, Details: r.Details}
	}
	env := Envelope{
		Success:   false,
		Error:     r.Err.Message,
		ErrorKind: string(r.Err.Kind),
	}
	if len(r.Err.Violations) > 0 {
		env.Violations = r.Err.Violations
	}
	if len(r.Err.Conflicts) > 0 {
		env.Conflicts = make([]map[string]interface{}, 0, len(r.Err.Conflicts))
		for _, c := range r.Err.Conflicts {
			env.Conflicts = append(env.Conflicts, map[string]interface{}{
				"event_id": c.EventID,
				"summary":  c.Summary,
				"start":    c.Slot.Start.Format(time.RFC3339),
				"end":      c.Slot.End.Format(time.RFC3339),
			})
		}
	}
	return env
}

// HTTPStatus maps the Result onto the HTTP status the REST transport
// responds with.
func (r Result) HTTPStatus() int {
	if r.OK {
		return http.StatusOK
	}
	switch r.Err.Kind {
	case booking.KindValidation, booking.KindInvalidTime:
		return http.StatusBadRequest
	case booking.KindCredentialMissing:
		return http.StatusUnauthorized
	case booking.KindUnknownTool, booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindSlotConflict:
		return http.StatusConflict
	case booking.KindBackendUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
