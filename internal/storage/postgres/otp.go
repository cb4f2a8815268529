package postgres

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/dbx"
)

// OTPStore is an auth.OTPStore backed by the mfa_sessions table, so a
// second-factor session started on one instance can be finished on another.
type OTPStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ auth.OTPStore = (*OTPStore)(nil)

// NewOTPStore wraps an open database handle.
func NewOTPStore(db *sql.DB) *OTPStore {
	return &OTPStore{db: db, now: time.Now}
}

// Create implements auth.OTPStore.
func (s *OTPStore) Create(ctx context.Context, sess *auth.OTPSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mfa_sessions (id, identity, code_hash, attempts, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.Identity, sess.CodeHash, sess.Attempts, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Check implements auth.OTPStore. The row is locked for the comparison so
// concurrent guesses are counted one by one.
func (s *OTPStore) Check(ctx context.Context, id string, codeHash []byte, maxAttempts int) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", auth.ErrNotFound
	}

	var (
		identity string
		outcome  error
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			stored    []byte
			attempts  int
			expiresAt time.Time
		)
		err := tx.QueryRowContext(ctx,
			`SELECT identity, code_hash, attempts, expires_at FROM mfa_sessions WHERE id = $1 FOR UPDATE`,
			id).Scan(&identity, &stored, &attempts, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			outcome = auth.ErrNotFound
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case s.now().After(expiresAt):
			outcome = auth.ErrExpired
		case subtle.ConstantTimeCompare(codeHash, stored) == 1:
			outcome = nil
		case attempts+1 >= maxAttempts:
			outcome = auth.ErrMFATooManyAttempts
		default:
			outcome = auth.ErrMFACodeInvalid
			_, err = tx.ExecContext(ctx, `UPDATE mfa_sessions SET attempts = attempts + 1 WHERE id = $1`, id)
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	if outcome != nil {
		return "", outcome
	}
	return identity, nil
}

// Delete implements auth.OTPStore.
func (s *OTPStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Sweep implements auth.OTPStore.
func (s *OTPStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
