package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"
)

// DefaultChallengeTTL is how long a handshake may stay open.
const DefaultChallengeTTL = 5 * time.Minute

// setupIDBytes is the entropy of a setup or login session ID.
const setupIDBytes = 32

// ChallengePurpose distinguishes setup handshakes from login handshakes.
type ChallengePurpose string

// Challenge purposes.
const (
	PurposeSetup ChallengePurpose = "setup"
	PurposeLogin ChallengePurpose = "login"
)

// ChallengeState is the server half of one in-flight handshake.
type ChallengeState struct {
	SetupID  string
	Purpose  ChallengePurpose
	Identity string

	// PendingID references the pending verifier of a setup handshake.
	PendingID string

	Salt     []byte
	Verifier *big.Int

	ServerPrivate *big.Int // b
	ServerPublic  *big.Int // B
	ClientPublic  *big.Int // A

	// Decoy marks a login challenge issued for an unknown identity.
	// It can never verify.
	Decoy bool

	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ChallengeSession owns in-flight handshake state. Consume is a single
// atomic read-and-invalidate: for one setup ID at most one caller succeeds.
type ChallengeSession interface {
	// Create stores st under a fresh unguessable ID and returns it.
	Create(ctx context.Context, st *ChallengeState) (string, error)

	// Consume returns the state and invalidates it. It fails with
	// ErrNotFound, ErrExpired or ErrAlreadyConsumed.
	Consume(ctx context.Context, setupID string) (*ChallengeState, error)

	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// NewSetupID returns a random URL-safe handshake identifier.
func NewSetupID() (string, error) {
	b := make([]byte, setupIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate setup ID: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// wipe zeroes the secret parts of a consumed challenge.
func (st *ChallengeState) wipe() {
	if st.ServerPrivate != nil {
		st.ServerPrivate.SetInt64(0)
	}
	st.ServerPrivate = nil
	st.Verifier = nil
}
