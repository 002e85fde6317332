package users

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindTransport covers everything that happens before a response body is
	// available: connectivity, timeouts, cancellation, non-2xx statuses.
	KindTransport ErrorKind = "transport"

	// KindDecodeFailure means a body arrived but did not match the user schema.
	KindDecodeFailure ErrorKind = "decode_failure"
)

func (k ErrorKind) String() string { return string(k) }

// Sentinel errors for use with errors.Is().
var (
	ErrTransport     = errors.New("users: transport failure")
	ErrDecodeFailure = errors.New("users: failed to decode response")
)

// decodeDescription is what the presentation layer shows for decode failures.
const decodeDescription = "Failed to decode response"

// FetchError is the error surfaced through the fetch state. Message is the
// human-readable description; Err keeps the underlying cause.
type FetchError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewTransportError wraps a network-level failure.
func NewTransportError(err error) *FetchError {
	msg := "unknown transport error"
	if err != nil {
		msg = err.Error()
	}
	return &FetchError{Kind: KindTransport, Message: msg, Err: err}
}

// NewDecodeError wraps a schema mismatch. The description is fixed; the cause
// stays reachable through Unwrap.
func NewDecodeError(err error) *FetchError {
	return &FetchError{Kind: KindDecodeFailure, Message: decodeDescription, Err: err}
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == KindDecodeFailure && e.Err != nil {
		return fmt.Sprintf("users: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("users: %s: %s", e.Kind, e.Message)
}

// Description returns the text a user should see.
func (e *FetchError) Description() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is() and errors.As().
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can write
// errors.Is(err, users.ErrDecodeFailure).
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrDecodeFailure:
		return e.Kind == KindDecodeFailure
	}
	return false
}

// Clone returns a copy that shares the underlying cause.
func (e *FetchError) Clone() *FetchError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// KindOf reports the kind of err if it is (or wraps) a *FetchError.
func KindOf(err error) (ErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
