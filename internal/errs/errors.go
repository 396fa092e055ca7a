package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericFallback is the user-facing line used when nothing more specific is known.
const GenericFallback = "Something went wrong. Please try again."

// ValidationError is a client-detected problem found before any network call.
type ValidationError struct {
	Field   string
	Message string
}

// Validation builds a *ValidationError.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

// RemoteError means the collaborator answered, but refused: either a non-2xx
// status or a {success:false} envelope. Status is the HTTP status code.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error (status %d)", e.Status)
	}
	return e.Message
}

// Unwrap maps well-known statuses onto sentinels so errors.Is works.
func (e *RemoteError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// TransportError wraps a network or decoding failure. There is no server
// message; Message carries the generic line shown to the user.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a *TransportError with the given user-facing message.
func Transport(msg string, err error) error {
	return &TransportError{Message: msg, Err: err}
}

// WithFallback fills an empty RemoteError/TransportError message with fallback.
// Other errors are returned unchanged.
func WithFallback(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Message == "" {
		re.Message = fallback
		return err
	}
	var te *TransportError
	if errors.As(err, &te) && te.Message == "" {
		te.Message = fallback
	}
	return err
}

// Message turns any error into exactly one human-readable line.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	var te *TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	if fallback != "" {
		return fallback
	}
	return GenericFallback
}

// Kind names the taxonomy bucket of err: "validation", "remote", "transport" or "unknown".
func Kind(err error) string {
	var (
		ve *ValidationError
		re *RemoteError
		te *TransportError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &re):
		return "remote"
	case errors.As(err, &te):
		return "transport"
	}
	return "unknown"
}
