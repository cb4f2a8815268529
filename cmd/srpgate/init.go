package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/config"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/internal/storage/postgres"
)

// decoyLabel separates the decoy key from the token signing key.
const decoyLabel = "srpgate decoy attributes v1"

// stores bundles the configured backends. With postgres every piece of
// login state is shared between instances.
type stores struct {
	verifiers      auth.VerifierStore
	challenges     auth.ChallengeSession
	otp            auth.OTPStore
	revocations    auth.RevocationStore
	verifierSweep  func(context.Context) (int, error)
	challengeSweep func(context.Context) (int, error)
	close          func(context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, challengeTTL time.Duration, logger *logging.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		logger.Info("connecting to postgres", map[string]any{
			"dsn":     logging.RedactDSN(cfg.Storage.DSN),
			"migrate": cfg.Storage.Migrate,
		})
		db, err := postgres.Open(ctx, cfg.Storage.DSN, cfg.Storage.Migrate)
		if err != nil {
			return nil, err
		}
		return postgresStores(db, challengeTTL), nil

	default:
		v := auth.NewMemoryVerifierStore()
		c := auth.NewMemoryChallengeStore(0)
		return &stores{
			verifiers:      v,
			challenges:     c,
			otp:            auth.NewMemoryOTPStore(),
			revocations:    auth.NewMemoryRevocationStore(),
			verifierSweep:  v.Sweep,
			challengeSweep: c.Sweep,
			close: func(context.Context) error {
				c.Stop()
				return nil
			},
		}, nil
	}
}

func postgresStores(db *sql.DB, challengeTTL time.Duration) *stores {
	v := postgres.NewVerifierStore(db)
	c := postgres.NewChallengeStore(db, challengeTTL)
	return &stores{
		verifiers:      v,
		challenges:     c,
		otp:            postgres.NewOTPStore(db),
		revocations:    postgres.NewRevocationStore(db),
		verifierSweep:  v.Sweep,
		challengeSweep: c.Sweep,
		close: func(context.Context) error {
			return db.Close()
		},
	}
}

// loadTokenSecret reads the signing secret from path, or generates an
// ephemeral one when path is empty.
//
//nolint:gosec // G304: path comes from the service configuration
func loadTokenSecret(path string) ([]byte, error) {
	if path == "" {
		return auth.GenerateSessionSecret()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token secret: %w", err)
	}
	secret := bytes.TrimSpace(data)
	if len(secret) < auth.SessionSecretBytes {
		return nil, fmt.Errorf("token secret in %s must be at least %d bytes", path, auth.SessionSecretBytes)
	}
	return secret, nil
}

// deriveDecoySecret keys the decoy attributes off the token secret so they
// stay stable for as long as the secret does.
func deriveDecoySecret(tokenSecret []byte) []byte {
	mac := hmac.New(sha256.New, tokenSecret)
	mac.Write([]byte(decoyLabel))
	return mac.Sum(nil)
}
