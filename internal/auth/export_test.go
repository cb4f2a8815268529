package auth

import "time"

// Test hooks for the clock of the in-memory components.

func (s *MemoryVerifierStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryChallengeStore) SetClock(now func() time.Time) { s.now = now }

func (g *EmailOTPGate) SetClock(now func() time.Time) {
	g.now = now
	if m, ok := g.store.(*MemoryOTPStore); ok {
		m.SetClock(now)
	}
}

func (s *MemoryOTPStore) SetClock(now func() time.Time) { s.mu.Lock(); s.now = now; s.mu.Unlock() }

func (s *MemoryRevocationStore) SetClock(now func() time.Time) { s.mu.Lock(); s.now = now; s.mu.Unlock() }

func (rl *RateLimiter) SetClock(now func() time.Time) { rl.mu.Lock(); rl.now = now; rl.mu.Unlock() }

func (a *Authenticator) SetClock(now func() time.Time) { a.now = now }

func (rl *RateLimiter) Cleanup() { rl.cleanup() }
