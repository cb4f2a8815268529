package auth

import "errors"

// Store and handshake errors. Callers match them with errors.Is.
var (
	// ErrNotFound is returned for an unknown identity, pending ID or setup ID.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a challenge or pending record outlived its TTL.
	ErrExpired = errors.New("expired")

	// ErrAlreadyConsumed is returned on the second use of a single-use value.
	ErrAlreadyConsumed = errors.New("already consumed")

	// ErrProofMismatch is the normal wrong-password outcome.
	ErrProofMismatch = errors.New("proof mismatch")

	// ErrConflict is returned when two verifier updates for one identity collide.
	ErrConflict = errors.New("conflicting verifier update")

	// ErrInvalidRequest is returned for malformed handshake input.
	ErrInvalidRequest = errors.New("invalid request")
)
