package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/fzdarsky/srpgate/pkg/kdf"
	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

const (
	// DefaultMaxEphemeralRetries bounds regeneration of a degenerate B.
	DefaultMaxEphemeralRetries = 3

	// MinSaltLen is the shortest SRP salt accepted at setup.
	MinSaltLen = 16
)

// Options configures an Authenticator.
type Options struct {
	Group *srp.Group

	// ChallengeTTL bounds every handshake and every pending verifier.
	ChallengeTTL time.Duration

	// MaxEphemeralRetries bounds attempts to draw a non-degenerate b.
	MaxEphemeralRetries int

	// DecoySecret enables deterministic decoy attributes for unknown
	// identities. Nil keeps the explicit not-found answer.
	DecoySecret []byte

	// DecoyParams are the KDF costs reported in decoy attributes.
	DecoyParams kdf.Params

	// Rand overrides the randomness source for ephemerals and decoys.
	Rand io.Reader
}

// LoginResult is the outcome of a verified login proof or second factor.
type LoginResult struct {
	Identity string
	M2       string // empty after a second factor

	// Exactly one of Token and TwoFactorSessionID is set.
	Token              string
	TwoFactorSessionID string
}

// MFAPending reports whether the caller still has to pass the second factor.
func (r *LoginResult) MFAPending() bool {
	return r.TwoFactorSessionID != ""
}

// Authenticator runs the server side of the SRP setup and login handshakes.
// It is safe for concurrent use; all per-handshake state lives in the
// ChallengeSession.
type Authenticator struct {
	group       *srp.Group
	verifiers   VerifierStore
	challenges  ChallengeSession
	tokens      TokenIssuer
	mfa         MFAGate
	ttl         time.Duration
	maxRetries  int
	decoySecret []byte
	decoyParams kdf.Params
	rand        io.Reader
	now         func() time.Time
}

// NewAuthenticator wires an Authenticator from its collaborators.
func NewAuthenticator(opts Options, verifiers VerifierStore, challenges ChallengeSession, tokens TokenIssuer, mfa MFAGate) (*Authenticator, error) {
	if opts.Group == nil {
		return nil, fmt.Errorf("%w: no group configured", srp.ErrInvalidGroupParameter)
	}
	if verifiers == nil || challenges == nil || tokens == nil {
		return nil, errors.New("authenticator requires verifier store, challenge store and token issuer")
	}

	a := &Authenticator{
		group:       opts.Group,
		verifiers:   verifiers,
		challenges:  challenges,
		tokens:      tokens,
		mfa:         mfa,
		ttl:         opts.ChallengeTTL,
		maxRetries:  opts.MaxEphemeralRetries,
		decoySecret: opts.DecoySecret,
		decoyParams: opts.DecoyParams,
		rand:        opts.Rand,
		now:         time.Now,
	}
	if a.ttl <= 0 {
		a.ttl = DefaultChallengeTTL
	}
	if a.maxRetries <= 0 {
		a.maxRetries = DefaultMaxEphemeralRetries
	}
	if a.decoyParams == (kdf.Params{}) {
		a.decoyParams = kdf.Moderate
	}
	if a.rand == nil {
		a.rand = rand.Reader
	}
	return a, nil
}

// Group returns the SRP group the authenticator runs in.
func (a *Authenticator) Group() *srp.Group {
	return a.group
}

// HasVerifier reports whether identity has an active verifier.
func (a *Authenticator) HasVerifier(ctx context.Context, identity string) (bool, error) {
	_, err := a.verifiers.Get(ctx, identity)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetAttributes returns the public SRP and KDF attributes of identity.
func (a *Authenticator) GetAttributes(ctx context.Context, identity string) (*protocol.SRPAttributes, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: srpUserID is required", ErrInvalidRequest)
	}

	rec, err := a.verifiers.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) && a.decoySecret != nil {
		return a.decoyAttributes(identity), nil
	}
	if err != nil {
		return nil, err
	}

	return &protocol.SRPAttributes{
		SRPUserID:         rec.Identity,
		SRPSalt:           srp.EncodeBytes(rec.Salt),
		MemLimit:          rec.MemLimit,
		OpsLimit:          rec.OpsLimit,
		KEKSalt:           srp.EncodeBytes(rec.KEKSalt),
		IsEmailMFAEnabled: rec.IsEmailMFAEnabled,
	}, nil
}

// decoyAttributes derives stable fake attributes so repeated lookups of an
// unknown identity look like a real account.
func (a *Authenticator) decoyAttributes(identity string) *protocol.SRPAttributes {
	derive := func(label string) []byte {
		mac := hmac.New(sha256.New, a.decoySecret)
		mac.Write([]byte(label))
		mac.Write([]byte{0})
		mac.Write([]byte(identity))
		return mac.Sum(nil)[:MinSaltLen]
	}

	return &protocol.SRPAttributes{
		SRPUserID: identity,
		SRPSalt:   srp.EncodeBytes(derive("srp-salt")),
		MemLimit:  a.decoyParams.MemLimit,
		OpsLimit:  a.decoyParams.OpsLimit,
		KEKSalt:   srp.EncodeBytes(derive("kek-salt")),
	}
}

// BeginSetup starts registration or verifier rotation. The new verifier is
// stored as pending and only becomes active in CompleteSetup. When params is
// nil the KDF attributes of the current active record are carried over.
func (a *Authenticator) BeginSetup(ctx context.Context, req protocol.SetupSRPRequest, params *protocol.KeyParams) (*protocol.SetupSRPResponse, error) {
	if req.SRPUserID == "" {
		return nil, fmt.Errorf("%w: srpUserID is required", ErrInvalidRequest)
	}

	salt, err := srp.DecodeBytes(req.SRPSalt)
	if err != nil {
		return nil, fmt.Errorf("%w: srpSalt: %w", ErrInvalidRequest, err)
	}
	if len(salt) < MinSaltLen {
		return nil, fmt.Errorf("%w: srpSalt must be at least %d bytes", ErrInvalidRequest, MinSaltLen)
	}

	v, err := a.group.DecodeInt(req.SRPVerifier)
	if err != nil {
		return nil, fmt.Errorf("%w: srpVerifier: %w", ErrInvalidRequest, err)
	}
	if v.Sign() <= 0 || v.Cmp(a.group.N) >= 0 {
		return nil, fmt.Errorf("%w: srpVerifier out of range", ErrInvalidRequest)
	}

	A, err := a.decodePublic(req.SRPA)
	if err != nil {
		return nil, err
	}

	rec := &VerifierRecord{
		Identity: req.SRPUserID,
		Salt:     salt,
		Verifier: v,
	}
	if err := a.resolveKeyParams(ctx, rec, params); err != nil {
		return nil, err
	}

	now := a.now()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(a.ttl)

	pendingID, err := a.verifiers.BeginSetup(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to store pending verifier: %w", err)
	}

	b, B, err := a.serverEphemeral(v)
	if err != nil {
		_ = a.verifiers.DiscardSetup(ctx, pendingID)
		return nil, err
	}

	setupID, err := a.challenges.Create(ctx, &ChallengeState{
		Purpose:       PurposeSetup,
		Identity:      req.SRPUserID,
		PendingID:     pendingID,
		Salt:          salt,
		Verifier:      v,
		ServerPrivate: b,
		ServerPublic:  B,
		ClientPublic:  A,
		CreatedAt:     now,
		ExpiresAt:     now.Add(a.ttl),
	})
	b.SetInt64(0)
	if err != nil {
		_ = a.verifiers.DiscardSetup(ctx, pendingID)
		return nil, fmt.Errorf("failed to store setup challenge: %w", err)
	}

	return &protocol.SetupSRPResponse{
		SetupID: setupID,
		SRPB:    a.group.EncodeInt(B),
	}, nil
}

func (a *Authenticator) resolveKeyParams(ctx context.Context, rec *VerifierRecord, params *protocol.KeyParams) error {
	if params != nil {
		kekSalt, err := srp.DecodeBytes(params.KEKSalt)
		if err != nil {
			return fmt.Errorf("%w: kekSalt: %w", ErrInvalidRequest, err)
		}
		if len(kekSalt) == 0 {
			return fmt.Errorf("%w: kekSalt is required", ErrInvalidRequest)
		}
		p := kdf.Params{MemLimit: params.MemLimit, OpsLimit: params.OpsLimit}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		rec.KEKSalt, rec.MemLimit, rec.OpsLimit = kekSalt, p.MemLimit, p.OpsLimit
		return nil
	}

	cur, err := a.verifiers.Get(ctx, rec.Identity)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: keyAttributes are required for a new account", ErrInvalidRequest)
	}
	if err != nil {
		return err
	}
	rec.KEKSalt, rec.MemLimit, rec.OpsLimit = cur.KEKSalt, cur.MemLimit, cur.OpsLimit
	return nil
}

// CompleteSetup verifies the client proof for a setup handshake and, on
// success, commits the pending verifier. A wrong proof discards it.
func (a *Authenticator) CompleteSetup(ctx context.Context, req protocol.CompleteSRPSetupRequest) (*protocol.CompleteSRPSetupResponse, error) {
	st, err := a.challenges.Consume(ctx, req.SetupID)
	if err != nil {
		return nil, err
	}
	defer st.wipe()

	if st.Purpose != PurposeSetup {
		return nil, ErrNotFound
	}

	m2, err := a.checkProof(st, req.SRPM1)
	if err != nil {
		if derr := a.verifiers.DiscardSetup(ctx, st.PendingID); derr != nil && !errors.Is(derr, ErrNotFound) {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}

	if err := a.verifiers.CommitSetup(ctx, st.PendingID); err != nil {
		return nil, err
	}

	return &protocol.CompleteSRPSetupResponse{
		SetupID: req.SetupID,
		SRPM2:   srp.EncodeBytes(m2),
	}, nil
}

// BeginLogin issues a login challenge against the active verifier. Unknown
// identities get a decoy challenge with the same shape that can never verify.
func (a *Authenticator) BeginLogin(ctx context.Context, req protocol.CreateSRPSessionRequest) (*protocol.CreateSRPSessionResponse, error) {
	if req.SRPUserID == "" {
		return nil, fmt.Errorf("%w: srpUserID is required", ErrInvalidRequest)
	}

	A, err := a.decodePublic(req.SRPA)
	if err != nil {
		return nil, err
	}

	st := &ChallengeState{
		Purpose:      PurposeLogin,
		Identity:     req.SRPUserID,
		ClientPublic: A,
	}

	rec, err := a.verifiers.Get(ctx, req.SRPUserID)
	switch {
	case err == nil:
		st.Salt, st.Verifier = rec.Salt, rec.Verifier
	case errors.Is(err, ErrNotFound):
		if st.Salt, st.Verifier, err = a.decoyVerifier(); err != nil {
			return nil, err
		}
		st.Decoy = true
	default:
		return nil, err
	}

	b, B, err := a.serverEphemeral(st.Verifier)
	if err != nil {
		return nil, err
	}

	now := a.now()
	st.ServerPrivate, st.ServerPublic = b, B
	st.CreatedAt, st.ExpiresAt = now, now.Add(a.ttl)

	sessionID, err := a.challenges.Create(ctx, st)
	b.SetInt64(0)
	if err != nil {
		return nil, fmt.Errorf("failed to store login challenge: %w", err)
	}

	return &protocol.CreateSRPSessionResponse{
		SessionID: sessionID,
		SRPB:      a.group.EncodeInt(B),
	}, nil
}

// CompleteLogin verifies the client proof of a login handshake. On success
// it returns M2 with either a session token or, when email MFA is enabled,
// a two-factor session ID.
func (a *Authenticator) CompleteLogin(ctx context.Context, req protocol.VerifySRPSessionRequest) (*LoginResult, error) {
	st, err := a.challenges.Consume(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer st.wipe()

	// The proof is computed even for decoys and mismatched identities so
	// that every failure costs the same.
	m2, err := a.checkProof(st, req.SRPM1)
	if st.Purpose != PurposeLogin || st.Decoy || st.Identity != req.SRPUserID {
		return nil, ErrProofMismatch
	}
	if err != nil {
		return nil, err
	}

	rec, err := a.verifiers.Get(ctx, st.Identity)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		Identity: st.Identity,
		M2:       srp.EncodeBytes(m2),
	}

	if rec.IsEmailMFAEnabled {
		if a.mfa == nil {
			return nil, errors.New("email MFA is enabled but no MFA gate is configured")
		}
		if result.TwoFactorSessionID, err = a.mfa.Begin(ctx, st.Identity); err != nil {
			return nil, err
		}
		return result, nil
	}

	if result.Token, err = a.tokens.Issue(st.Identity); err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyEmailMFA completes a login that was held back for the second factor.
func (a *Authenticator) VerifyEmailMFA(ctx context.Context, req protocol.VerifyEmailMFARequest) (*LoginResult, error) {
	if a.mfa == nil {
		return nil, ErrNotFound
	}

	identity, err := a.mfa.Verify(ctx, req.SessionID, req.Code)
	if err != nil {
		return nil, err
	}

	token, err := a.tokens.Issue(identity)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: identity, Token: token}, nil
}

// SetEmailMFA toggles email MFA for identity.
func (a *Authenticator) SetEmailMFA(ctx context.Context, identity string, enabled bool) error {
	return a.verifiers.SetEmailMFA(ctx, identity, enabled)
}

// checkProof recomputes S and M1 from the stored challenge and compares it to
// the submitted proof in constant time. It returns M2 on a match.
func (a *Authenticator) checkProof(st *ChallengeState, encodedM1 string) ([]byte, error) {
	m1, err := srp.DecodeBytes(encodedM1)
	if err != nil {
		m1 = nil
	}

	u, err := a.group.ComputeScrambler(st.ClientPublic, st.ServerPublic)
	if err != nil {
		return nil, ErrProofMismatch
	}

	S := a.group.ComputeSessionKeyServer(st.ClientPublic, st.Verifier, u, st.ServerPrivate)
	defer S.SetInt64(0)

	expected := a.group.ComputeM1(st.Identity, st.Salt, st.ClientPublic, st.ServerPublic, S)
	if !srp.ConstantTimeEqual(m1, expected) {
		return nil, ErrProofMismatch
	}

	return a.group.ComputeM2(st.ClientPublic, expected, S), nil
}

// serverEphemeral draws b and computes B, retrying a bounded number of times
// when B is degenerate.
func (a *Authenticator) serverEphemeral(v *big.Int) (*big.Int, *big.Int, error) {
	var lastErr error
	for range a.maxRetries {
		b, err := srp.GenerateEphemeral(a.rand)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate server ephemeral: %w", err)
		}
		B, err := a.group.ComputeServerPublic(v, b)
		if err == nil {
			return b, B, nil
		}
		b.SetInt64(0)
		if !errors.Is(err, srp.ErrInvalidEphemeral) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("no usable server ephemeral after %d attempts: %w", a.maxRetries, lastErr)
}

func (a *Authenticator) decodePublic(encoded string) (*big.Int, error) {
	A, err := a.group.DecodeInt(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: srpA: %w", ErrInvalidRequest, err)
	}
	if err := a.group.ValidatePublic(A); err != nil {
		return nil, err
	}
	return A, nil
}

// decoyVerifier returns a random salt and verifier for an unknown identity.
// The verifier is uniform in (0, N); a decoy challenge costs the same
// exponentiations as a real one.
func (a *Authenticator) decoyVerifier() ([]byte, *big.Int, error) {
	salt := make([]byte, MinSaltLen)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate decoy salt: %w", err)
	}
	for {
		v, err := srp.RandomBelow(a.rand, a.group.N)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate decoy verifier: %w", err)
		}
		if v.Sign() != 0 {
			return salt, v, nil
		}
	}
}
