package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryVerifierStore is an in-process VerifierStore. All mutations run
// under one mutex, which linearizes commits for every identity.
type MemoryVerifierStore struct {
	mu      sync.Mutex
	active  map[string]*VerifierRecord // key: identity
	pending map[string]*VerifierRecord // key: pending ID
	now     func() time.Time
}

// NewMemoryVerifierStore creates an empty store.
func NewMemoryVerifierStore() *MemoryVerifierStore {
	return &MemoryVerifierStore{
		active:  make(map[string]*VerifierRecord),
		pending: make(map[string]*VerifierRecord),
		now:     time.Now,
	}
}

// Get implements VerifierStore.
func (s *MemoryVerifierStore) Get(_ context.Context, identity string) (*VerifierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// BeginSetup implements VerifierStore.
func (s *MemoryVerifierStore) BeginSetup(_ context.Context, rec *VerifierRecord) (string, error) {
	if rec == nil || rec.Identity == "" || len(rec.Salt) == 0 || rec.Verifier == nil {
		return "", fmt.Errorf("%w: incomplete verifier record", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := cloneRecord(rec)
	p.ID = uuid.NewString()
	p.State = StatePending
	p.CreatedAt = s.now()
	p.ReplacesID = ""
	if cur, ok := s.active[rec.Identity]; ok {
		p.ReplacesID = cur.ID
	}

	s.pending[p.ID] = p
	return p.ID, nil
}

// CommitSetup implements VerifierStore. A pending record whose base active
// record was replaced in the meantime loses with ErrConflict.
func (s *MemoryVerifierStore) CommitSetup(_ context.Context, pendingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return ErrNotFound
	}
	switch p.State {
	case StateActive, StateDiscarded:
		return ErrAlreadyConsumed
	}
	if !p.ExpiresAt.IsZero() && s.now().After(p.ExpiresAt) {
		p.State = StateDiscarded
		return ErrExpired
	}

	var curID string
	if cur, ok := s.active[p.Identity]; ok {
		curID = cur.ID
	}
	if curID != p.ReplacesID {
		p.State = StateDiscarded
		return ErrConflict
	}

	rec := cloneRecord(p)
	rec.State = StateActive
	rec.ExpiresAt = time.Time{}
	if cur, ok := s.active[p.Identity]; ok {
		rec.IsEmailMFAEnabled = cur.IsEmailMFAEnabled
	}
	s.active[p.Identity] = rec

	// Keep a tombstone so a second commit reports AlreadyConsumed.
	p.State = StateActive
	p.Salt, p.KEKSalt, p.Verifier = nil, nil, nil
	return nil
}

// DiscardSetup implements VerifierStore.
func (s *MemoryVerifierStore) DiscardSetup(_ context.Context, pendingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return ErrNotFound
	}
	if p.State != StatePending {
		return ErrAlreadyConsumed
	}
	p.State = StateDiscarded
	p.Salt, p.KEKSalt, p.Verifier = nil, nil, nil
	return nil
}

// SetEmailMFA implements VerifierStore.
func (s *MemoryVerifierStore) SetEmailMFA(_ context.Context, identity string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[identity]
	if !ok {
		return ErrNotFound
	}
	rec.IsEmailMFAEnabled = enabled
	return nil
}

// Sweep drops pending records and tombstones older than their expiry.
func (s *MemoryVerifierStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, p := range s.pending {
		if !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt) {
			delete(s.pending, id)
			n++
		}
	}
	return n, nil
}
