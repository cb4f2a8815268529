package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fzdarsky/srpgate/pkg/srp"
)

// Validate performs comprehensive validation on the configuration.
func Validate(cfg *Config) error {
	if err := validateService(cfg); err != nil {
		return fmt.Errorf("service validation failed: %w", err)
	}

	if err := validateTransports(cfg); err != nil {
		return fmt.Errorf("transport validation failed: %w", err)
	}

	if err := validateAuth(cfg); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	if err := validateMFA(cfg); err != nil {
		return fmt.Errorf("mfa validation failed: %w", err)
	}

	if err := validateStorage(cfg); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

func validateService(cfg *Config) error {
	if _, err := cfg.GetSessionTTL(); err != nil {
		return err
	}

	if _, err := cfg.GetShutdownTimeout(); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Service.Issuer) == "" {
		return fmt.Errorf("issuer cannot be empty")
	}

	return nil
}

func validateTransports(cfg *Config) error {
	h := cfg.Transports.HTTP

	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}

	if strings.Contains(h.Address, " ") {
		return fmt.Errorf("http.address contains invalid characters")
	}

	if h.Insecure {
		return nil
	}

	for name, path := range map[string]string{"tls_cert": h.TLSCert, "tls_key": h.TLSKey} {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("http.%s must be an absolute path", name)
		}
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("http.%s directory does not exist: %s", name, dir)
		}
	}

	return nil
}

func validateAuth(cfg *Config) error {
	grp, err := srp.LookupGroup(cfg.Auth.Group, cfg.Auth.Hash)
	if err != nil {
		return err
	}
	if grp.Bits() < srp.MinGroupBits {
		return fmt.Errorf("group %s is smaller than %d bits", cfg.Auth.Group, srp.MinGroupBits)
	}

	if _, err := cfg.GetChallengeTTL(); err != nil {
		return err
	}

	if cfg.Auth.MaxEphemeralRetries < 1 || cfg.Auth.MaxEphemeralRetries > 10 {
		return fmt.Errorf("max_ephemeral_retries must be between 1 and 10")
	}

	if f := cfg.Auth.TokenSecretFile; f != "" {
		if !filepath.IsAbs(f) {
			return fmt.Errorf("token_secret_file must be an absolute path")
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("token_secret_file: %w", err)
		}
	}

	return nil
}

func validateMFA(cfg *Config) error {
	if _, err := cfg.GetCodeTTL(); err != nil {
		return err
	}

	if cfg.MFA.Email.MaxAttempts < 1 {
		return fmt.Errorf("email.max_attempts must be at least 1")
	}

	return nil
}

func validateStorage(cfg *Config) error {
	if _, err := cfg.GetSweepInterval(); err != nil {
		return err
	}

	if cfg.Storage.Driver == DriverPostgres {
		if !strings.HasPrefix(cfg.Storage.DSN, "postgres://") && !strings.HasPrefix(cfg.Storage.DSN, "postgresql://") {
			return fmt.Errorf("dsn must be a postgres:// URL")
		}
	}

	return nil
}

func validateLogging(cfg *Config) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %s", strings.Join(validLevels, ", "))
	}

	validFormats := []string{"json", "human"}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %s", strings.Join(validFormats, ", "))
	}

	return nil
}
