package cartapi

import (
	"errors"
	"fmt"
)

// Kind categorizes a failed cart service call.
type Kind string

const (
	// KindUnauthenticated means the session is missing or expired (HTTP 401).
	// Mutating callers redirect to login; reads treat the cart as empty.
	KindUnauthenticated Kind = "UNAUTHENTICATED"

	// KindRejected means the service declined the request, either with
	// success=false or a 4xx status. The message is meant for the user.
	KindRejected Kind = "VALIDATION_REJECTED"

	// KindNetwork covers transport errors, timeouts and 5xx responses.
	KindNetwork Kind = "NETWORK_FAILURE"

	// KindMalformed means the response body could not be decoded.
	// Callers treat it like KindNetwork.
	KindMalformed Kind = "MALFORMED_RESPONSE"
)

// Error is returned by every Client method that fails.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Op is the client operation, e.g. "update".
	Op string

	// Status is the HTTP status code, zero when no response arrived.
	Status int

	// Message is the server-provided message, if any.
	Message string

	// RequestID is the X-Request-ID sent with the call.
	RequestID string

	// Err is the underlying cause for network and decode failures.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("cart %s: %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("cart %s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsUnauthenticated reports whether err is a 401 from the cart service.
func IsUnauthenticated(err error) bool {
	return KindOf(err) == KindUnauthenticated
}

// IsRejected reports whether the service declined the request.
func IsRejected(err error) bool {
	return KindOf(err) == KindRejected
}

// IsTransient reports whether err is a network or malformed-response failure.
// Errors that are not *Error (context cancellation, for example) count as
// transient too: nothing reached the server's decision.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindMalformed:
		return true
	case "":
		return err != nil
	}
	return false
}

// UserMessage is the text shown to the user for err.
func UserMessage(err error, fallback string) string {
	var ce *Error
	if !errors.As(err, &ce) {
		return "Network error. Please try again."
	}
	switch ce.Kind {
	case KindUnauthenticated:
		return "Please log in to continue."
	case KindRejected:
		if ce.Message != "" {
			return ce.Message
		}
		return fallback
	}
	return "Network error. Please try again."
}
