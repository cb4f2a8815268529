package srp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// ServerChallenge is the server's answer to the first handshake message.
type ServerChallenge struct {
	Salt    string // base64 SRP salt
	B       string // base64 server ephemeral public value
	SetupID string // opaque handshake identifier
}

// Client holds the client-side state of a single SRP-6a handshake.
// Secrets live only in memory and are wiped by Clear or a failed VerifyServer.
type Client struct {
	group *Group
	rand  io.Reader

	identity    string
	loginSubKey []byte
	setupID     string

	a *big.Int // client ephemeral private value
	A *big.Int // client ephemeral public value
	x *big.Int // private key derived from the login sub-key

	m1         []byte
	expectedM2 []byte
	key        []byte
	verified   bool
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithRandom overrides the randomness source (tests only).
func WithRandom(r io.Reader) ClientOption {
	return func(c *Client) {
		c.rand = r
	}
}

// NewClient creates a client bound to the given group.
func NewClient(group *Group, opts ...ClientOption) *Client {
	c := &Client{
		group: group,
		rand:  rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartLogin generates the ephemeral keypair and returns A for the server.
// The login sub-key is retained only until FinishLogin derives x.
func (c *Client) StartLogin(identity string, loginSubKey []byte) (string, error) {
	a, err := GenerateEphemeral(c.rand)
	if err != nil {
		return "", fmt.Errorf("failed to generate random a: %w", err)
	}

	A, err := c.group.ComputeClientPublic(a)
	if err != nil {
		return "", err
	}

	c.Clear()
	c.identity = identity
	c.loginSubKey = append([]byte(nil), loginSubKey...)
	c.a = a
	c.A = A

	return c.group.EncodeInt(A), nil
}

// FinishLogin consumes the server challenge and returns the client proof M1.
func (c *Client) FinishLogin(ch ServerChallenge) (string, error) {
	if c.a == nil || c.A == nil || c.loginSubKey == nil {
		return "", fmt.Errorf("%w: StartLogin must be called first", ErrHandshakeState)
	}

	salt, err := DecodeBytes(ch.Salt)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %w", err)
	}
	B, err := c.group.DecodeInt(ch.B)
	if err != nil {
		return "", fmt.Errorf("invalid B: %w", err)
	}
	if err := c.group.ValidatePublic(B); err != nil {
		return "", err
	}

	u, err := c.group.ComputeScrambler(c.A, B)
	if err != nil {
		return "", err
	}

	c.x = c.group.ComputeX(c.identity, c.loginSubKey, salt)
	wipe(c.loginSubKey)
	c.loginSubKey = nil

	S := c.group.ComputeSessionKeyClient(B, c.x, c.a, u)
	c.m1 = c.group.ComputeM1(c.identity, salt, c.A, B, S)
	c.expectedM2 = c.group.ComputeM2(c.A, c.m1, S)
	c.key = c.group.SessionKey(S)
	c.setupID = ch.SetupID
	S.SetInt64(0)

	return EncodeBytes(c.m1), nil
}

// VerifyServer checks the server proof M2. On mismatch every secret,
// including the session key, is discarded and ErrServerAuthFailed returned.
//
//nolint:gocritic // M2 is capitalized per RFC 5054 SRP-6a specification
func (c *Client) VerifyServer(M2 string) error {
	if c.expectedM2 == nil {
		return fmt.Errorf("%w: FinishLogin must be called first", ErrHandshakeState)
	}

	serverM2, err := DecodeBytes(M2)
	if err != nil || !ConstantTimeEqual(serverM2, c.expectedM2) {
		c.Clear()
		return ErrServerAuthFailed
	}

	c.verified = true
	return nil
}

// SetupID returns the handshake identifier received from the server.
func (c *Client) SetupID() string {
	return c.setupID
}

// SessionKey returns K once the server proof has been verified.
func (c *Client) SessionKey() ([]byte, error) {
	if !c.verified {
		return nil, fmt.Errorf("%w: server proof not verified", ErrHandshakeState)
	}
	return append([]byte(nil), c.key...), nil
}

// Verifier computes the base64 verifier to register for identity and salt.
func (c *Client) Verifier(identity string, loginSubKey, salt []byte) string {
	return c.group.EncodeInt(c.group.ComputeVerifier(identity, loginSubKey, salt))
}

// Clear wipes all handshake secrets from memory.
func (c *Client) Clear() {
	for _, n := range []*big.Int{c.a, c.x} {
		if n != nil {
			n.SetInt64(0)
		}
	}
	wipe(c.loginSubKey)
	wipe(c.key)
	wipe(c.m1)
	wipe(c.expectedM2)

	c.a, c.A, c.x = nil, nil, nil
	c.loginSubKey, c.key, c.m1, c.expectedM2 = nil, nil, nil, nil
	c.identity, c.setupID = "", ""
	c.verified = false
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
