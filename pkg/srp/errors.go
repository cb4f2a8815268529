package srp

import "errors"

var (
	// ErrInvalidGroupParameter is returned when N or g do not describe a usable
	// SRP group. It is a configuration error and fatal at startup.
	ErrInvalidGroupParameter = errors.New("srp: invalid group parameter")

	// ErrInvalidEphemeral is returned for degenerate public values
	// (A, B or u congruent to zero modulo N).
	ErrInvalidEphemeral = errors.New("srp: invalid ephemeral value")

	// ErrServerAuthFailed is returned by the client when the server proof M2
	// does not match. The session key is discarded.
	ErrServerAuthFailed = errors.New("srp: server authentication failed")

	// ErrHandshakeState is returned when client operations are called out of order.
	ErrHandshakeState = errors.New("srp: handshake step out of order")
)
