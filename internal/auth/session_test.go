package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) *auth.JWTIssuer {
	t.Helper()
	secret, err := auth.GenerateSessionSecret()
	require.NoError(t, err)
	return auth.NewJWTIssuer(secret, "srpgate-test", time.Hour, nil)
}

func TestJWTIssuer_IssueAndValidate(t *testing.T) {
	ji := newIssuer(t)

	token, err := ji.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	sess, err := ji.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Identity)
	assert.NotEmpty(t, sess.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)
}

func TestJWTIssuer_RejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	ji := newIssuer(t)
	other := newIssuer(t)

	token, err := other.Issue("alice")
	require.NoError(t, err)

	_, err = ji.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionInvalid)

	_, err = ji.Validate(ctx, "not-a-token")
	assert.ErrorIs(t, err, auth.ErrSessionInvalid)
}

func TestJWTIssuer_RejectsNoneAlgorithm(t *testing.T) {
	ji := newIssuer(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    "srpgate-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SRPUserID: "alice",
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ji.Validate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrSessionInvalid)
}

func TestJWTIssuer_Expired(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	ji := auth.NewJWTIssuer(secret, "srpgate-test", time.Hour, nil)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    "srpgate-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		SRPUserID: "alice",
	})
	token, err := expired.SignedString(secret)
	require.NoError(t, err)

	_, err = ji.Validate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
}

func TestJWTIssuer_Revoke(t *testing.T) {
	ctx := context.Background()
	secret := []byte("0123456789abcdef0123456789abcdef")
	revoked := auth.NewMemoryRevocationStore()
	ji := auth.NewJWTIssuer(secret, "srpgate-test", time.Hour, revoked)

	token, err := ji.Issue("alice")
	require.NoError(t, err)

	require.NoError(t, ji.Revoke(ctx, token))
	assert.Equal(t, 1, revoked.Count())

	_, err = ji.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)

	assert.ErrorIs(t, ji.Revoke(ctx, token), auth.ErrSessionRevoked)
}

func TestJWTIssuer_SharedRevocations(t *testing.T) {
	ctx := context.Background()
	secret := []byte("0123456789abcdef0123456789abcdef")
	revoked := auth.NewMemoryRevocationStore()

	// Two instances behind one load balancer share the signing secret and
	// the revocation store.
	first := auth.NewJWTIssuer(secret, "srpgate-test", time.Hour, revoked)
	second := auth.NewJWTIssuer(secret, "srpgate-test", time.Hour, revoked)

	token, err := first.Issue("alice")
	require.NoError(t, err)
	_, err = second.Validate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, first.Revoke(ctx, token))
	_, err = second.Validate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
}

func TestMemoryRevocationStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := auth.NewMemoryRevocationStore()
	s.SetClock(clock.Now)

	require.NoError(t, s.Revoke(ctx, "short", clock.Now().Add(time.Minute)))
	require.NoError(t, s.Revoke(ctx, "long", clock.Now().Add(time.Hour)))

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Minute)
	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gone, err := s.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, gone)
	kept, err := s.IsRevoked(ctx, "long")
	require.NoError(t, err)
	assert.True(t, kept)
}

func TestJWTIssuer_MinimumTTL(t *testing.T) {
	ji := auth.NewJWTIssuer([]byte("0123456789abcdef0123456789abcdef"), "srpgate-test", time.Second, nil)

	token, err := ji.Issue("alice")
	require.NoError(t, err)
	sess, err := ji.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(auth.MinSessionTTL), sess.ExpiresAt, 5*time.Second)
}
