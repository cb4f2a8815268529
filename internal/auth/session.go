package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrSessionInvalid is returned for a token that fails verification.
	ErrSessionInvalid = errors.New("session token invalid")

	// ErrSessionExpired is returned when a session token has expired.
	ErrSessionExpired = errors.New("session token expired")

	// ErrSessionRevoked is returned for a token that was logged out.
	ErrSessionRevoked = errors.New("session token revoked")
)

const (
	// DefaultSessionTTL is the default session token lifetime.
	DefaultSessionTTL = 24 * time.Hour

	// MinSessionTTL is the minimum allowed session TTL.
	MinSessionTTL = 5 * time.Minute

	// SessionSecretBytes is the size of a generated signing secret.
	SessionSecretBytes = 32
)

// TokenIssuer issues and checks the session tokens handed out after a
// successful login. The SRP core only calls Issue.
type TokenIssuer interface {
	Issue(identity string) (string, error)
	Validate(ctx context.Context, token string) (*Session, error)
	Revoke(ctx context.Context, token string) error
}

// RevocationStore remembers logged-out token IDs until the tokens would
// have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Sweep(ctx context.Context) (int, error)
}

// Session is the verified content of a session token.
type Session struct {
	ID        string
	Identity  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	SRPUserID string `json:"srpUserID"`
}

// JWTIssuer signs HS256 session tokens. Tokens are stateless; only revoked
// token IDs are kept, in the configured RevocationStore.
type JWTIssuer struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	revoked RevocationStore
	parser  *jwt.Parser
}

// NewJWTIssuer creates a token issuer. If ttl is less than MinSessionTTL,
// it is raised to MinSessionTTL. A nil revocations selects an in-memory list.
func NewJWTIssuer(secret []byte, issuer string, ttl time.Duration, revocations RevocationStore) *JWTIssuer {
	if ttl < MinSessionTTL {
		ttl = MinSessionTTL
	}
	if revocations == nil {
		revocations = NewMemoryRevocationStore()
	}

	return &JWTIssuer{
		secret:  secret,
		issuer:  issuer,
		ttl:     ttl,
		revoked: revocations,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// Issue implements TokenIssuer.
func (ji *JWTIssuer) Issue(identity string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ji.issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ji.ttl)),
		},
		SRPUserID: identity,
	})

	signed, err := token.SignedString(ji.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate implements TokenIssuer.
func (ji *JWTIssuer) Validate(ctx context.Context, tokenString string) (*Session, error) {
	claims := &Claims{}
	_, err := ji.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return ji.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	if claims.SRPUserID == "" || claims.ID == "" {
		return nil, ErrSessionInvalid
	}

	revoked, err := ji.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return &Session{
		ID:        claims.ID,
		Identity:  claims.SRPUserID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke implements TokenIssuer.
func (ji *JWTIssuer) Revoke(ctx context.Context, tokenString string) error {
	sess, err := ji.Validate(ctx, tokenString)
	if err != nil {
		return err
	}
	return ji.revoked.Revoke(ctx, sess.ID, sess.ExpiresAt)
}

// MemoryRevocationStore is a RevocationStore local to one process.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // key: token ID, value: token expiry
	now     func() time.Time
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)

// NewMemoryRevocationStore creates an empty revocation list.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke implements RevocationStore.
func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = expiresAt
	return nil
}

// IsRevoked implements RevocationStore.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

// Sweep implements RevocationStore.
func (s *MemoryRevocationStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of tracked revocations.
func (s *MemoryRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

// GenerateSessionSecret returns a random signing secret. It is used when no
// token_secret_file is configured; tokens then do not survive a restart.
func GenerateSessionSecret() ([]byte, error) {
	secret := make([]byte, SessionSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}
