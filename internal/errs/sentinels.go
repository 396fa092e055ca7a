// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across session/transport/resource layers.
var (
	// ErrNotFound indicates the requested entity (or storage key) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the collaborator rejected the session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedState indicates persisted client-local state could not be decoded.
	ErrMalformedState = errors.New("malformed persisted state")
)
