package auth_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// captureCode records the code handed to the mailer.
func captureCode(mailer *auth.MockMailer, identity string, code *string) {
	mailer.EXPECT().
		SendCode(gomock.Any(), identity, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, c string) error {
			*code = c
			return nil
		})
}

func TestEmailOTPGate_BeginAndVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := auth.NewMockMailer(ctrl)

	var code string
	captureCode(mailer, "alice", &code)

	gate := auth.NewEmailOTPGate(mailer, nil, 0, 0)
	id, err := gate.Begin(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), code)

	identity, err := gate.Verify(context.Background(), id, code)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)

	// Codes are single use.
	_, err = gate.Verify(context.Background(), id, code)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestEmailOTPGate_WrongCodeBurnsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := auth.NewMockMailer(ctrl)

	var code string
	captureCode(mailer, "alice", &code)

	gate := auth.NewEmailOTPGate(mailer, nil, time.Minute, 3)
	id, err := gate.Begin(context.Background(), "alice")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err = gate.Verify(context.Background(), id, wrong)
	assert.ErrorIs(t, err, auth.ErrMFACodeInvalid)
	_, err = gate.Verify(context.Background(), id, wrong)
	assert.ErrorIs(t, err, auth.ErrMFACodeInvalid)
	_, err = gate.Verify(context.Background(), id, wrong)
	assert.ErrorIs(t, err, auth.ErrMFATooManyAttempts)

	_, err = gate.Verify(context.Background(), id, code)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestEmailOTPGate_Expired(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := auth.NewMockMailer(ctrl)

	var code string
	captureCode(mailer, "alice", &code)

	gate := auth.NewEmailOTPGate(mailer, nil, time.Minute, 3)
	clock := newFakeClock()
	gate.SetClock(clock.Now)

	id, err := gate.Begin(context.Background(), "alice")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = gate.Verify(context.Background(), id, code)
	assert.ErrorIs(t, err, auth.ErrExpired)
}

func TestEmailOTPGate_MailerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := auth.NewMockMailer(ctrl)
	mailer.EXPECT().SendCode(gomock.Any(), "alice", gomock.Any()).Return(errors.New("smtp down"))

	gate := auth.NewEmailOTPGate(mailer, nil, time.Minute, 3)
	_, err := gate.Begin(context.Background(), "alice")
	assert.ErrorContains(t, err, "smtp down")

	n, err := gate.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEmailOTPGate_SharedStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := auth.NewMockMailer(ctrl)

	var code string
	captureCode(mailer, "alice", &code)

	store := auth.NewMemoryOTPStore()
	first := auth.NewEmailOTPGate(mailer, store, time.Minute, 3)
	second := auth.NewEmailOTPGate(mailer, store, time.Minute, 3)

	id, err := first.Begin(context.Background(), "alice")
	require.NoError(t, err)

	identity, err := second.Verify(context.Background(), id, code)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)

	_, err = first.Verify(context.Background(), id, code)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMemoryOTPStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := auth.NewMemoryOTPStore()
	store.SetClock(clock.Now)

	require.NoError(t, store.Create(ctx, &auth.OTPSession{
		ID: "short", Identity: "alice", CodeHash: auth.HashOTP("123456"), ExpiresAt: clock.Now().Add(time.Minute),
	}))
	require.NoError(t, store.Create(ctx, &auth.OTPSession{
		ID: "long", Identity: "bob", CodeHash: auth.HashOTP("654321"), ExpiresAt: clock.Now().Add(time.Hour),
	}))

	clock.Advance(2 * time.Minute)
	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Check(ctx, "short", auth.HashOTP("123456"), 3)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	identity, err := store.Check(ctx, "long", auth.HashOTP("654321"), 3)
	require.NoError(t, err)
	assert.Equal(t, "bob", identity)
}
