// Package config loads and validates the srpgate service configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvDatabaseDSN overrides storage.dsn when set.
const EnvDatabaseDSN = "SRPGATE_DATABASE_DSN"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config represents the srpgate service configuration.
type Config struct {
	Service    ServiceSettings   `yaml:"service"`
	Transports TransportSettings `yaml:"transports"`
	Auth       AuthSettings      `yaml:"auth"`
	MFA        MFASettings       `yaml:"mfa"`
	Storage    StorageSettings   `yaml:"storage"`
	Logging    LoggingSettings   `yaml:"logging"`
}

// ServiceSettings contains service-level configuration.
type ServiceSettings struct {
	SessionTTL      string `yaml:"session_ttl"`
	Issuer          string `yaml:"issuer"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// TransportSettings contains transport-specific configuration.
type TransportSettings struct {
	HTTP HTTPTransport `yaml:"http"`
}

// HTTPTransport configures the JSON-over-HTTP(S) listener.
type HTTPTransport struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	TLSCert  string `yaml:"tls_cert"`
	TLSKey   string `yaml:"tls_key"`
	Insecure bool   `yaml:"insecure"` // plain HTTP, for local development only

	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	// Enable only behind a reverse proxy that always sets it.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// AuthSettings configures the SRP handshake.
type AuthSettings struct {
	Group               string `yaml:"group"`
	Hash                string `yaml:"hash"`
	ChallengeTTL        string `yaml:"challenge_ttl"`
	MaxEphemeralRetries int    `yaml:"max_ephemeral_retries"`
	DecoyAttributes     bool   `yaml:"decoy_attributes"`
	OpenRegistration    bool   `yaml:"open_registration"`
	TokenSecretFile     string `yaml:"token_secret_file"`
}

// MFASettings groups the second-factor settings.
type MFASettings struct {
	Email EmailMFASettings `yaml:"email"`
}

// EmailMFASettings configures email one-time codes.
type EmailMFASettings struct {
	CodeTTL     string `yaml:"code_ttl"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// StorageSettings selects where verifiers and challenges live.
type StorageSettings struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	SweepInterval string `yaml:"sweep_interval"`
	Migrate       bool   `yaml:"migrate"`
}

// LoggingSettings contains logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		Service: ServiceSettings{
			SessionTTL:      "24h",
			Issuer:          "srpgate",
			ShutdownTimeout: "15s",
		},
		Transports: TransportSettings{
			HTTP: HTTPTransport{Address: "0.0.0.0", Port: 8443},
		},
		Auth: AuthSettings{
			Group:               "rfc5054-4096",
			Hash:                "sha256",
			ChallengeTTL:        "5m",
			MaxEphemeralRetries: 3,
			OpenRegistration:    true,
		},
		MFA: MFASettings{
			Email: EmailMFASettings{CodeTTL: "10m", MaxAttempts: 5},
		},
		Storage: StorageSettings{
			Driver:        DriverMemory,
			SweepInterval: "1m",
			Migrate:       true,
		},
		Logging: LoggingSettings{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
//
//nolint:gosec // G304: Config path is from command-line argument
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		cfg.Storage.DSN = dsn
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate performs the cheap structural checks. Detailed validation is in
// validate.go.
func (c *Config) validate() error {
	if c.Service.SessionTTL == "" {
		return fmt.Errorf("service.session_ttl is required")
	}

	if c.Transports.HTTP.Port <= 0 || c.Transports.HTTP.Port > 65535 {
		return fmt.Errorf("transports.http.port must be between 1 and 65535")
	}

	if !c.Transports.HTTP.Insecure {
		if c.Transports.HTTP.TLSCert == "" {
			return fmt.Errorf("transports.http.tls_cert is required unless insecure is set")
		}
		if c.Transports.HTTP.TLSKey == "" {
			return fmt.Errorf("transports.http.tls_key is required unless insecure is set")
		}
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn (or %s) is required for the postgres driver", EnvDatabaseDSN)
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", DriverMemory, DriverPostgres)
	}

	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Transports.HTTP.Address
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, c.Transports.HTTP.Port)
}

// GetSessionTTL parses and returns the session token lifetime.
func (c *Config) GetSessionTTL() (time.Duration, error) {
	return parseMin("session_ttl", c.Service.SessionTTL, 5*time.Minute)
}

// GetShutdownTimeout parses and returns the graceful shutdown budget.
func (c *Config) GetShutdownTimeout() (time.Duration, error) {
	return parseMin("shutdown_timeout", c.Service.ShutdownTimeout, time.Second)
}

// GetChallengeTTL parses and returns how long a handshake may stay open.
func (c *Config) GetChallengeTTL() (time.Duration, error) {
	return parseMin("challenge_ttl", c.Auth.ChallengeTTL, 10*time.Second)
}

// GetCodeTTL parses and returns the email one-time code lifetime.
func (c *Config) GetCodeTTL() (time.Duration, error) {
	return parseMin("code_ttl", c.MFA.Email.CodeTTL, 30*time.Second)
}

// GetSweepInterval parses and returns the store sweep interval.
func (c *Config) GetSweepInterval() (time.Duration, error) {
	return parseMin("sweep_interval", c.Storage.SweepInterval, time.Second)
}

func parseMin(name, value string, floor time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < floor {
		return 0, fmt.Errorf("%s must be at least %s", name, floor)
	}
	return d, nil
}
