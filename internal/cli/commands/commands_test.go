package commands

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fzdarsky/srpgate/internal/api"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/kdf"
	"github.com/fzdarsky/srpgate/pkg/srp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeMailer struct {
	mu   sync.Mutex
	code string
}

func (m *codeMailer) SendCode(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	return nil
}

func (m *codeMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// setupCLI starts an insecure srpgate and points srpctl's config at it
// from a throwaway home directory.
func setupCLI(t *testing.T) (*codeMailer, []string) {
	t.Helper()

	kdfPresets["test"] = kdf.Params{OpsLimit: 1, MemLimit: 64 * 1024}
	t.Cleanup(func() { delete(kdfPresets, "test") })

	group, err := srp.LookupGroup(srp.Group2048, "sha256")
	require.NoError(t, err)

	challenges := auth.NewMemoryChallengeStore(0)
	t.Cleanup(challenges.Stop)
	tokens := auth.NewJWTIssuer([]byte("commands-test-secret-32-bytes!!!"), "srpgate-test", time.Hour, nil)
	limiter := auth.NewRateLimiter(auth.DefaultRateLimitPolicy)
	t.Cleanup(limiter.Stop)

	mailer := &codeMailer{}
	authn, err := auth.NewAuthenticator(auth.Options{Group: group}, auth.NewMemoryVerifierStore(), challenges, tokens, auth.NewEmailOTPGate(mailer, nil, 0, 0))
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Authenticator:    authn,
		Tokens:           tokens,
		Limiter:          limiter,
		Logger:           logging.Discard(),
		OpenRegistration: true,
	}))
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	t.Setenv("SRPCTL_INSECURE", "true")
	t.Setenv("SRPCTL_HOST", "")
	t.Setenv("SRPCTL_PORT", "")

	cfgDir := filepath.Join(home, ".config", "srpctl")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("group: rfc5054-2048\nhash: sha256\n"), 0o600))

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return mailer, []string{"--host", host, "--port", port}
}

func globals(stdin string) (*Globals, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Globals{
		AssumeYes: true,
		Stdin:     strings.NewReader(stdin),
		Stdout:    out,
		Stderr:    &bytes.Buffer{},
	}, out
}

func TestCommands_RegisterLoginAttributesLogout(t *testing.T) {
	_, conn := setupCLI(t)
	ctx := context.Background()

	g, out := globals("")
	args := append([]string{"--user", "alice", "--password", "pw", "--kdf", "test"}, conn...)
	require.NoError(t, NewRegisterCommand(g).Run(ctx, args))
	assert.Equal(t, "alice\n", out.String())

	g, _ = globals("")
	require.NoError(t, NewLoginCommand(g).Run(ctx, append([]string{"--user", "alice", "--password", "pw"}, conn...)))

	g, out = globals("")
	require.NoError(t, NewAttributesCommand(g).Run(ctx, append([]string{"--output", "json"}, conn...)))
	assert.Contains(t, out.String(), `"alice"`)

	g, _ = globals("")
	require.NoError(t, NewLogoutCommand(g).Run(ctx, conn))

	g, _ = globals("")
	err := NewLogoutCommand(g).Run(ctx, conn)
	assert.ErrorContains(t, err, "not logged in")
}

func TestCommands_RegisterGeneratesIdentity(t *testing.T) {
	_, conn := setupCLI(t)

	g, out := globals("secret\nsecret\n")
	require.NoError(t, NewRegisterCommand(g).Run(context.Background(), append([]string{"--kdf", "test"}, conn...)))
	assert.Len(t, strings.TrimSpace(out.String()), 36)
}

func TestCommands_RegisterPasswordMismatch(t *testing.T) {
	_, conn := setupCLI(t)

	g, _ := globals("one\ntwo\n")
	err := NewRegisterCommand(g).Run(context.Background(), append([]string{"--kdf", "test"}, conn...))
	assert.ErrorContains(t, err, "do not match")
}

func TestCommands_RotateRequiresLogin(t *testing.T) {
	_, conn := setupCLI(t)

	g, _ := globals("")
	err := NewRegisterCommand(g).Run(context.Background(), append([]string{"--rotate", "--password", "pw", "--kdf", "test"}, conn...))
	assert.ErrorContains(t, err, "not logged in")
}

func TestCommands_RotatePassword(t *testing.T) {
	_, conn := setupCLI(t)
	ctx := context.Background()

	g, _ := globals("")
	require.NoError(t, NewRegisterCommand(g).Run(ctx, append([]string{"--user", "bob", "--password", "old", "--kdf", "test"}, conn...)))
	g, _ = globals("")
	require.NoError(t, NewLoginCommand(g).Run(ctx, append([]string{"--user", "bob", "--password", "old"}, conn...)))

	g, _ = globals("")
	require.NoError(t, NewRegisterCommand(g).Run(ctx, append([]string{"--rotate", "--password", "new", "--kdf", "test"}, conn...)))

	g, _ = globals("")
	require.NoError(t, NewLoginCommand(g).Run(ctx, append([]string{"--user", "bob", "--password", "new"}, conn...)))
}

func TestCommands_MFAEnableAndLogin(t *testing.T) {
	mailer, conn := setupCLI(t)
	ctx := context.Background()

	g, _ := globals("")
	require.NoError(t, NewRegisterCommand(g).Run(ctx, append([]string{"--user", "carol", "--password", "pw", "--kdf", "test"}, conn...)))
	g, _ = globals("")
	require.NoError(t, NewLoginCommand(g).Run(ctx, append([]string{"--user", "carol", "--password", "pw"}, conn...)))

	g, _ = globals("")
	require.NoError(t, NewMFACommand(g).Run(ctx, append([]string{"enable"}, conn...)))

	// The code prompt reads stdin lazily, after the mailer has the code.
	g, _ = globals("")
	g.Stdin = &lazyReader{read: func() string { return mailer.last() + "\n" }}
	require.NoError(t, NewLoginCommand(g).Run(ctx, append([]string{"--user", "carol", "--password", "pw"}, conn...)))
}

func TestCommands_MFAUnknownAction(t *testing.T) {
	g, _ := globals("")
	err := NewMFACommand(g).Run(context.Background(), []string{"toggle"})
	assert.ErrorContains(t, err, "unknown action")
}

func TestCommands_UnknownKDF(t *testing.T) {
	g, _ := globals("")
	err := NewRegisterCommand(g).Run(context.Background(), []string{"--kdf", "extreme"})
	assert.ErrorContains(t, err, "unknown kdf strength")
}

type lazyReader struct {
	read func() string
	r    *strings.Reader
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.r == nil {
		l.r = strings.NewReader(l.read())
	}
	return l.r.Read(p)
}
