package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzdarsky/srpgate/internal/auth"
)

const (
	pendingUUID = "6f1c0d6e-8d4b-4a53-9a51-0a2f1b7c9e01"
	activeUUID  = "0b7e3f52-77a1-4b8e-bf0e-2c4d5a6b7c8d"
	otherUUID   = "a3d9c2e1-1111-4c2b-8e3f-9d8c7b6a5f40"
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newVerifierStoreWithMock(t *testing.T) (*VerifierStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewVerifierStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func verifierColumns() []string {
	return []string{"id", "identity", "state", "salt", "verifier", "mem_limit", "ops_limit", "kek_salt",
		"is_email_mfa_enabled", "replaces_id", "created_at", "expires_at"}
}

func TestVerifierStore_Get(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	rows := sqlmock.NewRows(verifierColumns()).
		AddRow(activeUUID, "alice", "active", []byte("salt-salt-salt-1"), []byte{0x01, 0x02},
			int64(67108864), int64(2), []byte("kek-salt"), true, nil, fixedNow, nil)
	mock.ExpectQuery(`FROM srp_verifiers WHERE identity = \$1 AND state = 'active'`).
		WithArgs("alice").
		WillReturnRows(rows)

	rec, err := s.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, activeUUID, rec.ID)
	assert.Equal(t, auth.StateActive, rec.State)
	assert.Equal(t, big.NewInt(0x0102), rec.Verifier)
	assert.Equal(t, uint32(67108864), rec.MemLimit)
	assert.Equal(t, uint32(2), rec.OpsLimit)
	assert.True(t, rec.IsEmailMFAEnabled)
	assert.Empty(t, rec.ReplacesID)
	assert.True(t, rec.ExpiresAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_GetNotFound(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectQuery(`FROM srp_verifiers WHERE identity = \$1`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(verifierColumns()))

	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_GetDBError(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectQuery(`FROM srp_verifiers`).WillReturnError(errors.New("db down"))

	_, err := s.Get(context.Background(), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, auth.ErrNotFound)
}

func TestVerifierStore_BeginSetup(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	rec := &auth.VerifierRecord{
		Identity:  "alice",
		Salt:      []byte("salt-salt-salt-1"),
		Verifier:  big.NewInt(77),
		MemLimit:  1024,
		OpsLimit:  2,
		KEKSalt:   []byte("kek"),
		ExpiresAt: fixedNow.Add(5 * time.Minute),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR SHARE NOWAIT`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(activeUUID))
	mock.ExpectExec(`INSERT INTO srp_verifiers`).
		WithArgs(sqlmock.AnyArg(), "alice", rec.Salt, []byte{77}, int64(1024), int64(2), []byte("kek"),
			activeUUID, fixedNow, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.BeginSetup(context.Background(), rec)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_BeginSetupFirstRegistration(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR SHARE NOWAIT`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO srp_verifiers`).
		WithArgs(sqlmock.AnyArg(), "bob", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(0), int64(0), nil,
			nil, fixedNow, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.BeginSetup(context.Background(), &auth.VerifierRecord{
		Identity: "bob",
		Salt:     []byte("salt"),
		Verifier: big.NewInt(5),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_BeginSetupLocked(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR SHARE NOWAIT`).
		WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable})
	mock.ExpectRollback()

	_, err := s.BeginSetup(context.Background(), &auth.VerifierRecord{
		Identity: "alice",
		Salt:     []byte("salt"),
		Verifier: big.NewInt(5),
	})
	assert.ErrorIs(t, err, auth.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_BeginSetupIncomplete(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	_, err := s.BeginSetup(context.Background(), &auth.VerifierRecord{Identity: "alice"})
	assert.ErrorIs(t, err, auth.ErrInvalidRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectPendingRow(mock sqlmock.Sqlmock, state string, replaces any, expiresAt time.Time) {
	mock.ExpectQuery(`SELECT identity, state, replaces_id, expires_at FROM srp_verifiers WHERE id = \$1 FOR UPDATE`).
		WithArgs(pendingUUID).
		WillReturnRows(sqlmock.NewRows([]string{"identity", "state", "replaces_id", "expires_at"}).
			AddRow("alice", state, replaces, expiresAt))
}

func TestVerifierStore_CommitSetupReplacesActive(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectBegin()
	expectPendingRow(mock, "pending", activeUUID, fixedNow.Add(time.Minute))
	mock.ExpectQuery(`FOR UPDATE NOWAIT`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_email_mfa_enabled"}).AddRow(activeUUID, true))
	mock.ExpectExec(`DELETE FROM srp_verifiers WHERE id = \$1`).
		WithArgs(activeUUID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET state = 'active', expires_at = NULL, is_email_mfa_enabled = \$2`).
		WithArgs(pendingUUID, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CommitSetup(context.Background(), pendingUUID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_CommitSetupFirstRegistration(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectBegin()
	expectPendingRow(mock, "pending", nil, fixedNow.Add(time.Minute))
	mock.ExpectQuery(`FOR UPDATE NOWAIT`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_email_mfa_enabled"}))
	mock.ExpectExec(`SET state = 'active'`).
		WithArgs(pendingUUID, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CommitSetup(context.Background(), pendingUUID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_CommitSetupOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		want   error
	}{
		{
			name: "unknown pending ID",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FOR UPDATE`).
					WithArgs(pendingUUID).
					WillReturnRows(sqlmock.NewRows([]string{"identity", "state", "replaces_id", "expires_at"}))
				mock.ExpectCommit()
			},
			want: auth.ErrNotFound,
		},
		{
			name: "already committed",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectPendingRow(mock, "active", nil, time.Time{})
				mock.ExpectCommit()
			},
			want: auth.ErrAlreadyConsumed,
		},
		{
			name: "discarded",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectPendingRow(mock, "discarded", nil, fixedNow.Add(time.Minute))
				mock.ExpectCommit()
			},
			want: auth.ErrAlreadyConsumed,
		},
		{
			name: "expired",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectPendingRow(mock, "pending", nil, fixedNow.Add(-time.Second))
				mock.ExpectExec(`SET state = 'discarded'`).
					WithArgs(pendingUUID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			want: auth.ErrExpired,
		},
		{
			name: "active record replaced since setup began",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectPendingRow(mock, "pending", activeUUID, fixedNow.Add(time.Minute))
				mock.ExpectQuery(`FOR UPDATE NOWAIT`).
					WillReturnRows(sqlmock.NewRows([]string{"id", "is_email_mfa_enabled"}).AddRow(otherUUID, false))
				mock.ExpectExec(`SET state = 'discarded'`).
					WithArgs(pendingUUID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			want: auth.ErrConflict,
		},
		{
			name: "concurrent commit holds the active row",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectPendingRow(mock, "pending", activeUUID, fixedNow.Add(time.Minute))
				mock.ExpectQuery(`FOR UPDATE NOWAIT`).
					WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable})
				mock.ExpectRollback()
			},
			want: auth.ErrConflict,
		},
		{
			name: "concurrent first registration wins the unique index",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectPendingRow(mock, "pending", nil, fixedNow.Add(time.Minute))
				mock.ExpectQuery(`FOR UPDATE NOWAIT`).
					WillReturnRows(sqlmock.NewRows([]string{"id", "is_email_mfa_enabled"}))
				mock.ExpectExec(`SET state = 'active'`).
					WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})
				mock.ExpectRollback()
			},
			want: auth.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newVerifierStoreWithMock(t)
			tt.expect(mock)

			err := s.CommitSetup(context.Background(), pendingUUID)
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestVerifierStore_CommitSetupMalformedID(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	assert.ErrorIs(t, s.CommitSetup(context.Background(), "not-a-uuid"), auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_DiscardSetup(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		s, mock := newVerifierStoreWithMock(t)
		mock.ExpectExec(`SET state = 'discarded'`).
			WithArgs(pendingUUID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, s.DiscardSetup(context.Background(), pendingUUID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already committed", func(t *testing.T) {
		s, mock := newVerifierStoreWithMock(t)
		mock.ExpectExec(`SET state = 'discarded'`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT state FROM srp_verifiers`).
			WithArgs(pendingUUID).
			WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("active"))

		assert.ErrorIs(t, s.DiscardSetup(context.Background(), pendingUUID), auth.ErrAlreadyConsumed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown", func(t *testing.T) {
		s, mock := newVerifierStoreWithMock(t)
		mock.ExpectExec(`SET state = 'discarded'`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT state FROM srp_verifiers`).
			WillReturnError(sql.ErrNoRows)

		assert.ErrorIs(t, s.DiscardSetup(context.Background(), pendingUUID), auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVerifierStore_SetEmailMFA(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectExec(`SET is_email_mfa_enabled = \$2`).
		WithArgs("alice", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET is_email_mfa_enabled = \$2`).
		WithArgs("nobody", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.SetEmailMFA(context.Background(), "alice", true))
	assert.ErrorIs(t, s.SetEmailMFA(context.Background(), "nobody", true), auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifierStore_Sweep(t *testing.T) {
	s, mock := newVerifierStoreWithMock(t)

	mock.ExpectExec(`DELETE FROM srp_verifiers WHERE state <> 'active' AND expires_at < \$1`).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
