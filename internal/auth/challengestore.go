package auth

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired challenges are removed.
const DefaultSweepInterval = 1 * time.Minute

// MemoryChallengeStore keeps handshake state in process memory.
// Consumed entries stay as tombstones until their TTL elapses so that a
// replay is reported as ErrAlreadyConsumed rather than ErrNotFound.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*ChallengeState // key: setup ID
	now        func() time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewMemoryChallengeStore creates a store and starts its background sweeper.
// A non-positive interval disables the sweeper; expiry is still enforced on access.
func NewMemoryChallengeStore(sweepInterval time.Duration) *MemoryChallengeStore {
	s := &MemoryChallengeStore{
		challenges: make(map[string]*ChallengeState),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}

	return s
}

// Create implements ChallengeSession.
func (s *MemoryChallengeStore) Create(_ context.Context, st *ChallengeState) (string, error) {
	id, err := NewSetupID()
	if err != nil {
		return "", err
	}

	c := *st
	c.SetupID = id
	c.Consumed = false
	c.Salt = append([]byte(nil), st.Salt...)
	c.Verifier = copyInt(st.Verifier)
	c.ServerPrivate = copyInt(st.ServerPrivate)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = c.CreatedAt.Add(DefaultChallengeTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[id] = &c

	return id, nil
}

// Consume implements ChallengeSession.
func (s *MemoryChallengeStore) Consume(_ context.Context, setupID string) (*ChallengeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.challenges[setupID]
	if !ok {
		return nil, ErrNotFound
	}
	if st.Consumed {
		return nil, ErrAlreadyConsumed
	}
	if s.now().After(st.ExpiresAt) {
		st.wipe()
		delete(s.challenges, setupID)
		return nil, ErrExpired
	}

	out := *st
	st.Consumed = true
	// The caller owns the secrets now; the tombstone keeps none.
	st.ServerPrivate = nil
	st.Verifier = nil
	st.Salt = nil

	out.Consumed = true
	return &out, nil
}

// Sweep implements ChallengeSession.
func (s *MemoryChallengeStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, st := range s.challenges {
		if now.After(st.ExpiresAt) {
			st.wipe()
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored challenges, tombstones included.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Stop stops the background sweeper.
func (s *MemoryChallengeStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryChallengeStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

func copyInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
