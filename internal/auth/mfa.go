package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

var (
	// ErrMFACodeInvalid is returned for a wrong one-time code.
	ErrMFACodeInvalid = errors.New("invalid one-time code")

	// ErrMFATooManyAttempts is returned once a two-factor session is burned.
	ErrMFATooManyAttempts = errors.New("too many one-time code attempts")
)

const (
	// DefaultMFACodeTTL is how long an emailed code stays valid.
	DefaultMFACodeTTL = 10 * time.Minute

	// DefaultMFAMaxAttempts is how many wrong codes a session tolerates.
	DefaultMFAMaxAttempts = 5

	otpDigits = 6
)

var otpBound = big.NewInt(1_000_000)

// MFAGate runs the second factor after a successful SRP proof.
type MFAGate interface {
	// Begin starts a second-factor challenge and returns its session ID.
	Begin(ctx context.Context, identity string) (string, error)

	// Verify checks code and returns the identity the session belongs to.
	Verify(ctx context.Context, sessionID, code string) (string, error)
}

// Mailer delivers a one-time code to the account's mailbox.
type Mailer interface {
	SendCode(ctx context.Context, identity, code string) error
}

// LogMailer writes codes to the service log instead of sending mail.
// Development only.
type LogMailer struct {
	Logger *logging.Logger
}

// SendCode implements Mailer.
func (m *LogMailer) SendCode(_ context.Context, identity, code string) error {
	m.Logger.Info("email one-time code", map[string]any{
		"srp_user_id": identity,
		"otp":         code,
	})
	return nil
}

// OTPSession is a pending second-factor challenge. Only a hash of the
// code is kept.
type OTPSession struct {
	ID        string
	Identity  string
	CodeHash  []byte
	Attempts  int
	ExpiresAt time.Time
}

// OTPStore keeps second-factor sessions between the SRP proof and the
// emailed code.
type OTPStore interface {
	// Create stores a new session.
	Create(ctx context.Context, s *OTPSession) error

	// Check compares codeHash with the stored hash in one atomic step. A
	// match deletes the session and returns its identity. A miss counts an
	// attempt and deletes the session once maxAttempts is reached. Missing
	// and expired sessions yield ErrNotFound and ErrExpired.
	Check(ctx context.Context, id string, codeHash []byte, maxAttempts int) (string, error)

	// Delete drops a session.
	Delete(ctx context.Context, id string) error

	// Sweep removes expired sessions.
	Sweep(ctx context.Context) (int, error)
}

// HashOTP returns the stored form of a one-time code.
func HashOTP(code string) []byte {
	h := sha256.Sum256([]byte(code))
	return h[:]
}

// EmailOTPGate is an MFAGate that mails a six-digit code.
type EmailOTPGate struct {
	store       OTPStore
	mailer      Mailer
	ttl         time.Duration
	maxAttempts int
	rand        io.Reader
	now         func() time.Time
}

// NewEmailOTPGate creates a gate. A nil store selects an in-memory one;
// zero values select the defaults.
func NewEmailOTPGate(mailer Mailer, store OTPStore, ttl time.Duration, maxAttempts int) *EmailOTPGate {
	if store == nil {
		store = NewMemoryOTPStore()
	}
	if ttl <= 0 {
		ttl = DefaultMFACodeTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMFAMaxAttempts
	}
	return &EmailOTPGate{
		store:       store,
		mailer:      mailer,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		rand:        rand.Reader,
		now:         time.Now,
	}
}

// Begin implements MFAGate.
func (g *EmailOTPGate) Begin(ctx context.Context, identity string) (string, error) {
	n, err := srp.RandomBelow(g.rand, otpBound)
	if err != nil {
		return "", fmt.Errorf("failed to generate one-time code: %w", err)
	}
	code := fmt.Sprintf("%0*d", otpDigits, n.Int64())
	id := uuid.NewString()

	err = g.store.Create(ctx, &OTPSession{
		ID:        id,
		Identity:  identity,
		CodeHash:  HashOTP(code),
		ExpiresAt: g.now().Add(g.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store two-factor session: %w", err)
	}

	if err := g.mailer.SendCode(ctx, identity, code); err != nil {
		if derr := g.store.Delete(ctx, id); derr != nil {
			err = errors.Join(err, derr)
		}
		return "", fmt.Errorf("failed to deliver one-time code: %w", err)
	}

	return id, nil
}

// Verify implements MFAGate.
func (g *EmailOTPGate) Verify(ctx context.Context, sessionID, code string) (string, error) {
	return g.store.Check(ctx, sessionID, HashOTP(code), g.maxAttempts)
}

// Sweep removes expired two-factor sessions.
func (g *EmailOTPGate) Sweep(ctx context.Context) (int, error) {
	return g.store.Sweep(ctx)
}

// MemoryOTPStore is an OTPStore local to one process.
type MemoryOTPStore struct {
	mu       sync.Mutex
	sessions map[string]*OTPSession
	now      func() time.Time
}

var _ OTPStore = (*MemoryOTPStore)(nil)

// NewMemoryOTPStore creates an empty store.
func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		sessions: make(map[string]*OTPSession),
		now:      time.Now,
	}
}

// Create implements OTPStore.
func (s *MemoryOTPStore) Create(_ context.Context, sess *OTPSession) error {
	c := *sess
	c.CodeHash = append([]byte(nil), sess.CodeHash...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[c.ID] = &c
	return nil
}

// Check implements OTPStore.
func (s *MemoryOTPStore) Check(_ context.Context, id string, codeHash []byte, maxAttempts int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return "", ErrNotFound
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return "", ErrExpired
	}

	if subtle.ConstantTimeCompare(codeHash, sess.CodeHash) != 1 {
		sess.Attempts++
		if sess.Attempts >= maxAttempts {
			delete(s.sessions, id)
			return "", ErrMFATooManyAttempts
		}
		return "", ErrMFACodeInvalid
	}

	delete(s.sessions, id)
	return sess.Identity, nil
}

// Delete implements OTPStore.
func (s *MemoryOTPStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep implements OTPStore.
func (s *MemoryOTPStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
