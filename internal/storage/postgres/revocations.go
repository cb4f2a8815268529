package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fzdarsky/srpgate/internal/auth"
)

// RevocationStore is an auth.RevocationStore backed by the revoked_tokens
// table. A logout is seen by every instance and survives a restart.
type RevocationStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ auth.RevocationStore = (*RevocationStore)(nil)

// NewRevocationStore wraps an open database handle.
func NewRevocationStore(db *sql.DB) *RevocationStore {
	return &RevocationStore{db: db, now: time.Now}
}

// Revoke implements auth.RevocationStore.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at) VALUES ($1, $2) ON CONFLICT (token_id) DO NOTHING`,
		tokenID, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// IsRevoked implements auth.RevocationStore.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

// Sweep implements auth.RevocationStore.
func (s *RevocationStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
