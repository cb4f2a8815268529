//nolint:gosec // G306: Test files use standard permissions
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzdarsky/srpgate/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	tlsDir := t.TempDir()

	path := writeConfig(t, `
service:
  session_ttl: "12h"
  issuer: "srpgate-test"

transports:
  http:
    address: "127.0.0.1"
    port: 9443
    tls_cert: "`+filepath.Join(tlsDir, "server.crt")+`"
    tls_key: "`+filepath.Join(tlsDir, "server.key")+`"

auth:
  group: "rfc5054-2048"
  hash: "sha512"
  challenge_ttl: "2m"
  max_ephemeral_retries: 5
  decoy_attributes: true
  open_registration: false

mfa:
  email:
    code_ttl: "5m"
    max_attempts: 3

storage:
  driver: "postgres"
  dsn: "postgres://srp:pw@localhost/srpgate"
  sweep_interval: "30s"

logging:
  level: "debug"
  format: "human"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))

	assert.Equal(t, "srpgate-test", cfg.Service.Issuer)
	assert.Equal(t, "127.0.0.1:9443", cfg.Addr())
	assert.Equal(t, "rfc5054-2048", cfg.Auth.Group)
	assert.Equal(t, 5, cfg.Auth.MaxEphemeralRetries)
	assert.True(t, cfg.Auth.DecoyAttributes)
	assert.False(t, cfg.Auth.OpenRegistration)
	assert.Equal(t, 3, cfg.MFA.Email.MaxAttempts)
	assert.Equal(t, config.DriverPostgres, cfg.Storage.Driver)
	assert.True(t, cfg.Storage.Migrate, "unset fields keep their defaults")
	assert.Equal(t, "15s", cfg.Service.ShutdownTimeout)

	ttl, err := cfg.GetChallengeTTL()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, ttl)
}

func TestLoad_MinimalInsecureConfig(t *testing.T) {
	path := writeConfig(t, `
transports:
  http:
    port: 8080
    insecure: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))

	assert.Equal(t, config.DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "rfc5054-4096", cfg.Auth.Group)
	assert.Equal(t, 3, cfg.Auth.MaxEphemeralRetries)
	assert.True(t, cfg.Auth.OpenRegistration)
}

func TestLoad_DSNFromEnvironment(t *testing.T) {
	t.Setenv(config.EnvDatabaseDSN, "postgres://env@db/srpgate")

	path := writeConfig(t, `
transports:
  http:
    insecure: true
storage:
  driver: postgres
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@db/srpgate", cfg.Storage.DSN)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			body:    "invalid: [yaml",
			wantErr: "failed to parse config file",
		},
		{
			name:    "tls required",
			body:    "transports: {http: {port: 8443}}",
			wantErr: "tls_cert is required",
		},
		{
			name:    "bad port",
			body:    "transports: {http: {port: 70000, insecure: true}}",
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "postgres without dsn",
			body:    "transports: {http: {insecure: true}}\nstorage: {driver: postgres}",
			wantErr: "storage.dsn",
		},
		{
			name:    "unknown driver",
			body:    "transports: {http: {insecure: true}}\nstorage: {driver: redis}",
			wantErr: "storage.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvDatabaseDSN, "")
			cfg, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestGetSessionTTL(t *testing.T) {
	tests := []struct {
		name        string
		ttl         string
		expectError bool
		expected    time.Duration
	}{
		{name: "valid 30 minutes", ttl: "30m", expected: 30 * time.Minute},
		{name: "valid 1 day", ttl: "24h", expected: 24 * time.Hour},
		{name: "minimum 5 minutes", ttl: "5m", expected: 5 * time.Minute},
		{name: "below minimum", ttl: "2m", expectError: true},
		{name: "invalid format", ttl: "invalid", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Service: config.ServiceSettings{SessionTTL: tt.ttl},
			}

			duration, err := cfg.GetSessionTTL()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, duration)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{
			name:   "defaults with insecure transport",
			mutate: func(*config.Config) {},
		},
		{
			name:    "unknown group",
			mutate:  func(c *config.Config) { c.Auth.Group = "rfc5054-1024" },
			wantErr: "unknown group",
		},
		{
			name:    "unsupported hash",
			mutate:  func(c *config.Config) { c.Auth.Hash = "md5" },
			wantErr: "unsupported hash",
		},
		{
			name:    "retries out of range",
			mutate:  func(c *config.Config) { c.Auth.MaxEphemeralRetries = 0 },
			wantErr: "max_ephemeral_retries",
		},
		{
			name:    "challenge ttl too short",
			mutate:  func(c *config.Config) { c.Auth.ChallengeTTL = "1s" },
			wantErr: "challenge_ttl must be at least",
		},
		{
			name:    "relative token secret",
			mutate:  func(c *config.Config) { c.Auth.TokenSecretFile = "secret.key" },
			wantErr: "token_secret_file must be an absolute path",
		},
		{
			name:    "no mfa attempts",
			mutate:  func(c *config.Config) { c.MFA.Email.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name: "non-url dsn",
			mutate: func(c *config.Config) {
				c.Storage.Driver = config.DriverPostgres
				c.Storage.DSN = "host=db user=srp"
			},
			wantErr: "postgres:// URL",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "trace" },
			wantErr: "logging.level",
		},
		{
			name:    "empty issuer",
			mutate:  func(c *config.Config) { c.Service.Issuer = " " },
			wantErr: "issuer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Transports.HTTP.Insecure = true
			tt.mutate(cfg)

			err := config.Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddr_IPv6(t *testing.T) {
	cfg := config.Default()
	cfg.Transports.HTTP.Address = "::1"
	assert.Equal(t, "[::1]:8443", cfg.Addr())
}
