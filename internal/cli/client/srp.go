package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/fzdarsky/srpgate/pkg/kdf"
	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// CodePrompt obtains the emailed one-time code during login.
type CodePrompt func(ctx context.Context) (string, error)

// LoginResult is the outcome of a completed login.
type LoginResult struct {
	Identity string
	Token    string
}

// SetupVerifier derives a fresh login sub-key from password and registers
// its verifier for identity. The same call rotates the verifier of an
// existing account when the client holds a session for it.
func (c *Client) SetupVerifier(ctx context.Context, group *srp.Group, identity string, password []byte, params kdf.Params) error {
	kekSalt, err := kdf.NewSalt()
	if err != nil {
		return err
	}
	srpSalt, err := kdf.NewSalt()
	if err != nil {
		return err
	}

	subKey, err := kdf.LoginSubKey(password, kekSalt, params)
	if err != nil {
		return fmt.Errorf("failed to derive login key: %w", err)
	}

	srpClient := srp.NewClient(group)
	defer srpClient.Clear()

	A, err := srpClient.StartLogin(identity, subKey)
	if err != nil {
		return fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}
	verifier := srpClient.Verifier(identity, subKey, srpSalt)
	wipe(subKey)

	setup, err := c.SetupSRP(ctx, protocol.SetupSRPRequest{
		SRPUserID:   identity,
		SRPSalt:     srp.EncodeBytes(srpSalt),
		SRPVerifier: verifier,
		SRPA:        A,
		KeyAttributes: &protocol.KeyParams{
			KEKSalt:  srp.EncodeBytes(kekSalt),
			MemLimit: params.MemLimit,
			OpsLimit: params.OpsLimit,
		},
	})
	if err != nil {
		return fmt.Errorf("SRP setup failed: %w", err)
	}

	M1, err := srpClient.FinishLogin(srp.ServerChallenge{
		Salt:    srp.EncodeBytes(srpSalt),
		B:       setup.SRPB,
		SetupID: setup.SetupID,
	})
	if err != nil {
		return fmt.Errorf("invalid server challenge: %w", err)
	}

	done, err := c.CompleteSetup(ctx, protocol.CompleteSRPSetupRequest{SetupID: setup.SetupID, SRPM1: M1})
	if err != nil {
		return fmt.Errorf("SRP setup completion failed: %w", err)
	}

	if err := srpClient.VerifyServer(done.SRPM2); err != nil {
		return fmt.Errorf("server authentication failed: %w", err)
	}
	return nil
}

// Login runs the SRP login for identity and, when the account has email
// MFA enabled, the second factor. The session token is kept on the client.
func (c *Client) Login(ctx context.Context, group *srp.Group, identity string, password []byte, prompt CodePrompt) (*LoginResult, error) {
	attrs, err := c.GetAttributes(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SRP attributes: %w", err)
	}

	kekSalt, err := srp.DecodeBytes(attrs.KEKSalt)
	if err != nil {
		return nil, fmt.Errorf("invalid kekSalt from server: %w", err)
	}
	subKey, err := kdf.LoginSubKey(password, kekSalt, kdf.Params{OpsLimit: attrs.OpsLimit, MemLimit: attrs.MemLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to derive login key: %w", err)
	}

	srpClient := srp.NewClient(group)
	defer srpClient.Clear()

	A, err := srpClient.StartLogin(identity, subKey)
	wipe(subKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}

	sess, err := c.CreateSession(ctx, protocol.CreateSRPSessionRequest{SRPUserID: identity, SRPA: A})
	if err != nil {
		return nil, fmt.Errorf("SRP session creation failed: %w", err)
	}

	M1, err := srpClient.FinishLogin(srp.ServerChallenge{Salt: attrs.SRPSalt, B: sess.SRPB, SetupID: sess.SessionID})
	if err != nil {
		return nil, fmt.Errorf("invalid server challenge: %w", err)
	}

	verified, err := c.VerifySession(ctx, protocol.VerifySRPSessionRequest{
		SessionID: sess.SessionID,
		SRPUserID: identity,
		SRPM1:     M1,
	})
	if err != nil {
		return nil, fmt.Errorf("SRP verification failed: %w", err)
	}

	if err := srpClient.VerifyServer(verified.SRPM2); err != nil {
		return nil, fmt.Errorf("server authentication failed: %w", err)
	}

	token := verified.Token
	if verified.TwoFactorSessionID != "" {
		if prompt == nil {
			return nil, errors.New("account requires an email code but no prompt is available")
		}
		code, err := prompt(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read email code: %w", err)
		}

		final, err := c.VerifyEmailMFA(ctx, protocol.VerifyEmailMFARequest{
			SessionID: verified.TwoFactorSessionID,
			Code:      code,
		})
		if err != nil {
			return nil, fmt.Errorf("email code verification failed: %w", err)
		}
		token = final.Token
	}

	if token == "" {
		return nil, errors.New("server returned no session token")
	}
	c.sessionToken = token
	return &LoginResult{Identity: identity, Token: token}, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
