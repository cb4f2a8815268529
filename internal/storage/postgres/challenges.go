package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fzdarsky/srpgate/internal/auth"
)

// ChallengeStore is an auth.ChallengeSession backed by the srp_challenges
// table. Consumed rows keep only public values until Sweep removes them.
type ChallengeStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ auth.ChallengeSession = (*ChallengeStore)(nil)

// NewChallengeStore wraps an open database handle. A non-positive ttl
// selects auth.DefaultChallengeTTL.
func NewChallengeStore(db *sql.DB, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = auth.DefaultChallengeTTL
	}
	return &ChallengeStore{db: db, ttl: ttl, now: time.Now}
}

// Create implements auth.ChallengeSession.
func (s *ChallengeStore) Create(ctx context.Context, st *auth.ChallengeState) (string, error) {
	id, err := auth.NewSetupID()
	if err != nil {
		return "", err
	}

	createdAt := st.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	expiresAt := st.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(s.ttl)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO srp_challenges
		   (id, purpose, identity, pending_id, salt, verifier, server_private, server_public, client_public,
		    decoy, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, string(st.Purpose), st.Identity, stringOrNil(st.PendingID), bytesOrNil(st.Salt),
		intBytes(st.Verifier), intBytes(st.ServerPrivate), intBytes(st.ServerPublic), intBytes(st.ClientPublic),
		st.Decoy, createdAt, expiresAt)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// Consume implements auth.ChallengeSession. The row is claimed and stripped
// of its secrets in one statement; the pre-update values are read from the
// locked snapshot in the FROM clause.
func (s *ChallengeStore) Consume(ctx context.Context, setupID string) (*auth.ChallengeState, error) {
	now := s.now()

	var (
		st                           auth.ChallengeState
		purpose                      string
		pendingID                    sql.NullString
		verifier, priv, pub, clientA []byte
	)
	err := s.db.QueryRowContext(ctx,
		`UPDATE srp_challenges c
		    SET consumed_at = $2, salt = NULL, verifier = NULL, server_private = NULL
		   FROM (SELECT id, purpose, identity, pending_id, salt, verifier, server_private,
		                server_public, client_public, decoy, created_at, expires_at
		           FROM srp_challenges WHERE id = $1 FOR UPDATE) old
		  WHERE c.id = old.id AND c.consumed_at IS NULL AND c.expires_at >= $2
		RETURNING old.purpose, old.identity, old.pending_id, old.salt, old.verifier, old.server_private,
		          old.server_public, old.client_public, old.decoy, old.created_at, old.expires_at`,
		setupID, now).Scan(&purpose, &st.Identity, &pendingID, &st.Salt, &verifier, &priv,
		&pub, &clientA, &st.Decoy, &st.CreatedAt, &st.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyMiss(ctx, setupID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	st.SetupID = setupID
	st.Purpose = auth.ChallengePurpose(purpose)
	st.PendingID = pendingID.String
	st.Verifier = bytesInt(verifier)
	st.ServerPrivate = bytesInt(priv)
	st.ServerPublic = bytesInt(pub)
	st.ClientPublic = bytesInt(clientA)
	st.Consumed = true
	return &st, nil
}

// classifyMiss tells apart the reasons a consume matched no row. An expired
// challenge is deleted on access.
func (s *ChallengeStore) classifyMiss(ctx context.Context, setupID string, now time.Time) error {
	var (
		consumedAt sql.NullTime
		expiresAt  time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT consumed_at, expires_at FROM srp_challenges WHERE id = $1`, setupID).
		Scan(&consumedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if consumedAt.Valid {
		return auth.ErrAlreadyConsumed
	}
	if now.After(expiresAt) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM srp_challenges WHERE id = $1`, setupID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return auth.ErrExpired
	}
	// The row was claimed between the two statements.
	return auth.ErrAlreadyConsumed
}

// Sweep implements auth.ChallengeSession.
func (s *ChallengeStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM srp_challenges WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func intBytes(x *big.Int) any {
	if x == nil {
		return nil
	}
	return x.Bytes()
}

func bytesInt(b []byte) *big.Int {
	if b == nil {
		return nil
	}
	return new(big.Int).SetBytes(b)
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
