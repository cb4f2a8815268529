package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/dbx"
)

// VerifierStore is an auth.VerifierStore backed by the srp_verifiers table.
// At most one active row exists per identity, enforced by a partial unique
// index.
type VerifierStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ auth.VerifierStore = (*VerifierStore)(nil)

// NewVerifierStore wraps an open database handle.
func NewVerifierStore(db *sql.DB) *VerifierStore {
	return &VerifierStore{db: db, now: time.Now}
}

const selectVerifier = `SELECT id, identity, state, salt, verifier, mem_limit, ops_limit, kek_salt,
       is_email_mfa_enabled, replaces_id, created_at, expires_at
  FROM srp_verifiers`

// Get implements auth.VerifierStore.
func (s *VerifierStore) Get(ctx context.Context, identity string) (*auth.VerifierRecord, error) {
	row := s.db.QueryRowContext(ctx, selectVerifier+` WHERE identity = $1 AND state = 'active'`, identity)
	rec, err := scanVerifier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// BeginSetup implements auth.VerifierStore. The active row is share-locked
// without waiting, so a setup racing an in-flight commit fails with
// auth.ErrConflict.
func (s *VerifierStore) BeginSetup(ctx context.Context, rec *auth.VerifierRecord) (string, error) {
	if rec == nil || rec.Identity == "" || len(rec.Salt) == 0 || rec.Verifier == nil {
		return "", fmt.Errorf("%w: incomplete verifier record", auth.ErrInvalidRequest)
	}

	id := uuid.NewString()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var replaces sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM srp_verifiers WHERE identity = $1 AND state = 'active' FOR SHARE NOWAIT`,
			rec.Identity).Scan(&replaces)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO srp_verifiers
			   (id, identity, state, salt, verifier, mem_limit, ops_limit, kek_salt, replaces_id, created_at, expires_at)
			 VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, rec.Identity, rec.Salt, rec.Verifier.Bytes(),
			int64(rec.MemLimit), int64(rec.OpsLimit), bytesOrNil(rec.KEKSalt),
			replaces, s.now(), timeOrNil(rec.ExpiresAt))
		return err
	})
	if err != nil {
		if isPgCode(err, codeLockNotAvailable) {
			return "", auth.ErrConflict
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// CommitSetup implements auth.VerifierStore. It locks the pending row, then
// the current active row without waiting. A competing commit, or an active
// row that is no longer the one the setup started from, yields
// auth.ErrConflict and discards the pending row.
func (s *VerifierStore) CommitSetup(ctx context.Context, pendingID string) error {
	if _, err := uuid.Parse(pendingID); err != nil {
		return auth.ErrNotFound
	}

	// outcome is returned after the transaction commits, so that state
	// changes made on the failure paths are kept.
	var outcome error
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			identity  string
			state     string
			replaces  sql.NullString
			expiresAt sql.NullTime
		)
		err := tx.QueryRowContext(ctx,
			`SELECT identity, state, replaces_id, expires_at FROM srp_verifiers WHERE id = $1 FOR UPDATE`,
			pendingID).Scan(&identity, &state, &replaces, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			outcome = auth.ErrNotFound
			return nil
		}
		if err != nil {
			return err
		}

		if auth.VerifierState(state) != auth.StatePending {
			outcome = auth.ErrAlreadyConsumed
			return nil
		}
		if expiresAt.Valid && s.now().After(expiresAt.Time) {
			outcome = auth.ErrExpired
			return discardPending(ctx, tx, pendingID)
		}

		var (
			curID  sql.NullString
			curMFA bool
		)
		err = tx.QueryRowContext(ctx,
			`SELECT id, is_email_mfa_enabled FROM srp_verifiers
			  WHERE identity = $1 AND state = 'active' FOR UPDATE NOWAIT`,
			identity).Scan(&curID, &curMFA)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if curID.String != replaces.String {
			outcome = auth.ErrConflict
			return discardPending(ctx, tx, pendingID)
		}

		if curID.Valid {
			if _, err := tx.ExecContext(ctx, `DELETE FROM srp_verifiers WHERE id = $1`, curID.String); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE srp_verifiers
			    SET state = 'active', expires_at = NULL, is_email_mfa_enabled = $2
			  WHERE id = $1`,
			pendingID, curMFA)
		return err
	})
	if err != nil {
		if isPgCode(err, codeLockNotAvailable) || isPgCode(err, codeUniqueViolation) {
			return auth.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return outcome
}

func discardPending(ctx context.Context, tx dbx.DBTX, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE srp_verifiers SET state = 'discarded', salt = NULL, verifier = NULL, kek_salt = NULL WHERE id = $1`,
		id)
	return err
}

// DiscardSetup implements auth.VerifierStore.
func (s *VerifierStore) DiscardSetup(ctx context.Context, pendingID string) error {
	if _, err := uuid.Parse(pendingID); err != nil {
		return auth.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE srp_verifiers SET state = 'discarded', salt = NULL, verifier = NULL, kek_salt = NULL
		  WHERE id = $1 AND state = 'pending'`,
		pendingID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var state string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM srp_verifiers WHERE id = $1`, pendingID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return auth.ErrAlreadyConsumed
}

// SetEmailMFA implements auth.VerifierStore.
func (s *VerifierStore) SetEmailMFA(ctx context.Context, identity string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE srp_verifiers SET is_email_mfa_enabled = $2 WHERE identity = $1 AND state = 'active'`,
		identity, enabled)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// Sweep deletes pending and discarded rows past their expiry.
func (s *VerifierStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM srp_verifiers WHERE state <> 'active' AND expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanVerifier(row *sql.Row) (*auth.VerifierRecord, error) {
	var (
		rec       auth.VerifierRecord
		state     string
		verifier  []byte
		mem, ops  int64
		replaces  sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.Identity, &state, &rec.Salt, &verifier, &mem, &ops, &rec.KEKSalt,
		&rec.IsEmailMFAEnabled, &replaces, &rec.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	rec.State = auth.VerifierState(state)
	rec.Verifier = new(big.Int).SetBytes(verifier)
	rec.MemLimit = uint32(mem) //nolint:gosec // written from a uint32
	rec.OpsLimit = uint32(ops) //nolint:gosec // written from a uint32
	rec.ReplacesID = replaces.String
	if expiresAt.Valid {
		rec.ExpiresAt = expiresAt.Time
	}
	return &rec, nil
}
