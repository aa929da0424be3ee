package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the classified result of a single backend call.
type Kind int

// Outcome kinds. Exactly one applies to every call.
const (
	KindSuccess Kind = iota
	KindSoftTimeout
	KindHardTimeout
	KindConnectionFailed
	KindRateLimited
	KindAuthRequired
	KindServerError
)

// String returns the stable name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindSoftTimeout:
		return "soft_timeout"
	case KindHardTimeout:
		return "hard_timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthRequired:
		return "auth_required"
	case KindServerError:
		return "server_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DefaultRetryAfter is used when a rate-limit response carries no retry_after.
const DefaultRetryAfter = 60 * time.Second

// Outcome describes the classification of one call.
type Outcome struct {
	Kind Kind

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Payload holds the raw response body for KindSuccess.
	Payload json.RawMessage

	// Message is a human-readable description for non-success kinds.
	Message string

	// RetryAfter is the server-requested wait for KindRateLimited.
	RetryAfter time.Duration

	// Attempts is the number of requests sent (1 or 2).
	Attempts int
}

// Responded reports whether the backend produced an HTTP response.
func (o *Outcome) Responded() bool {
	return o != nil && o.StatusCode != 0
}

// Decode unmarshals a successful payload into v.
func (o *Outcome) Decode(v any) error {
	if o == nil || len(o.Payload) == 0 {
		return fmt.Errorf("empty response body")
	}

	return json.Unmarshal(o.Payload, v)
}

// Err converts a non-success outcome into an *Error. It returns nil for KindSuccess.
func (o *Outcome) Err(op string) error {
	if o == nil || o.Kind == KindSuccess {
		return nil
	}

	return &Error{
		Kind:       o.Kind,
		Op:         op,
		StatusCode: o.StatusCode,
		Message:    o.Message,
		RetryAfter: o.RetryAfter,
	}
}

// Error is the typed error returned for every non-success outcome.
// Callers branch on Kind, never on Message.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Pending reports whether the operation may still complete server-side.
func (e *Error) Pending() bool {
	return e.Kind == KindSoftTimeout
}

// KindOf returns the classified kind of err, or KindSuccess when err is nil.
// ok is false when err is not a client error.
func KindOf(err error) (kind Kind, ok bool) {
	if err == nil {
		return KindSuccess, true
	}

	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Kind, true
	}

	return 0, false
}

// IsKind reports whether err is a client error of the given kind.
func IsKind(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && err != nil && got == kind
}

// RetryAfter returns the wait requested by a rate-limited response.
func RetryAfter(err error) (time.Duration, bool) {
	var clientErr *Error
	if errors.As(err, &clientErr) && clientErr.Kind == KindRateLimited {
		return clientErr.RetryAfter, true
	}

	return 0, false
}
