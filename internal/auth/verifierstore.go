package auth

import (
	"context"
	"math/big"
	"time"
)

// VerifierState tags a VerifierRecord in the two-phase setup commit.
type VerifierState string

// Verifier record states.
const (
	StatePending   VerifierState = "pending"
	StateActive    VerifierState = "active"
	StateDiscarded VerifierState = "discarded"
)

// VerifierRecord is one SRP verifier for an identity together with the KDF
// attributes the client needs to rebuild its login sub-key. Salt and Verifier
// are only ever written together.
type VerifierRecord struct {
	ID       string
	Identity string
	State    VerifierState

	Salt     []byte
	Verifier *big.Int

	MemLimit uint32
	OpsLimit uint32
	KEKSalt  []byte

	IsEmailMFAEnabled bool

	// ReplacesID is the active record this pending record was based on.
	// Empty for a first registration.
	ReplacesID string

	CreatedAt time.Time
	ExpiresAt time.Time // pending records only
}

// VerifierStore persists verifier records. Implementations must make
// CommitSetup atomic: a pending record is promoted and the previous active
// record removed in one step, and two commits for the same identity are
// linearized.
type VerifierStore interface {
	// Get returns the active record for identity or ErrNotFound.
	Get(ctx context.Context, identity string) (*VerifierRecord, error)

	// BeginSetup stores rec as a pending record and returns its pending ID.
	// The active record is not touched.
	BeginSetup(ctx context.Context, rec *VerifierRecord) (string, error)

	// CommitSetup promotes a pending record to active. It fails with
	// ErrNotFound, ErrExpired, ErrAlreadyConsumed or ErrConflict.
	CommitSetup(ctx context.Context, pendingID string) error

	// DiscardSetup drops a pending record so it can never be committed.
	DiscardSetup(ctx context.Context, pendingID string) error

	// SetEmailMFA toggles email MFA on the active record.
	SetEmailMFA(ctx context.Context, identity string, enabled bool) error
}

func cloneRecord(rec *VerifierRecord) *VerifierRecord {
	c := *rec
	c.Salt = append([]byte(nil), rec.Salt...)
	c.KEKSalt = append([]byte(nil), rec.KEKSalt...)
	if rec.Verifier != nil {
		c.Verifier = new(big.Int).Set(rec.Verifier)
	}
	return &c
}
