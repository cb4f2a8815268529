package auth

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRateLimitExceeded is returned while a key must wait out a failure delay.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrClientLocked is returned while a key is locked out.
	ErrClientLocked = errors.New("client locked out")
)

// RateLimitPolicy describes the progressive back-off applied to failed
// handshakes. Delays[i] is enforced after the (i+1)th consecutive failure;
// once they are exhausted the key is locked out for Lockout.
type RateLimitPolicy struct {
	Delays  []time.Duration
	Lockout time.Duration

	// IdleAfter is how long an untouched tracker is kept.
	IdleAfter time.Duration
}

// DefaultRateLimitPolicy waits 1s, 2s and 5s, then locks out for a minute.
var DefaultRateLimitPolicy = RateLimitPolicy{
	Delays:    []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second},
	Lockout:   60 * time.Second,
	IdleAfter: 5 * time.Minute,
}

// CleanupIntervalRateLimit is how often idle trackers are dropped.
const CleanupIntervalRateLimit = 2 * time.Minute

// attemptTracker holds the failure history of one key.
type attemptTracker struct {
	failures   int
	lastFailed time.Time
	retryAt    time.Time // zero when no delay is pending
}

// RateLimiter applies a RateLimitPolicy per key. Handlers key it by client
// IP so that an attacker cannot spread guesses across identities.
type RateLimiter struct {
	mu       sync.Mutex
	policy   RateLimitPolicy
	attempts map[string]*attemptTracker
	now      func() time.Time
	stopCh   chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a rate limiter with background cleanup.
func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	if policy.Lockout <= 0 {
		policy.Lockout = DefaultRateLimitPolicy.Lockout
	}
	if policy.IdleAfter <= 0 {
		policy.IdleAfter = DefaultRateLimitPolicy.IdleAfter
	}

	rl := &RateLimiter{
		policy:   policy,
		attempts: make(map[string]*attemptTracker),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// CheckLimit reports whether key may attempt a handshake now. When it may
// not, retryAfter says how long to wait and err is ErrClientLocked or
// ErrRateLimitExceeded.
func (rl *RateLimiter) CheckLimit(key string) (locked bool, retryAfter time.Duration, err error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	t, ok := rl.attempts[key]
	if !ok {
		return false, 0, nil
	}

	wait := t.retryAt.Sub(rl.now())
	if wait <= 0 {
		return false, 0, nil
	}
	if t.failures > len(rl.policy.Delays) {
		return true, wait, ErrClientLocked
	}
	return false, wait, ErrRateLimitExceeded
}

// RecordFailure records a failed attempt and returns the enforced delay.
func (rl *RateLimiter) RecordFailure(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	t, ok := rl.attempts[key]
	if !ok {
		t = &attemptTracker{}
		rl.attempts[key] = t
	}

	now := rl.now()
	t.failures++
	t.lastFailed = now

	delay := rl.delayFor(t.failures)
	t.retryAt = now.Add(delay)
	return delay
}

// RecordSuccess forgets the failure history of key.
func (rl *RateLimiter) RecordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// Failures returns the consecutive failure count of key.
func (rl *RateLimiter) Failures(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if t, ok := rl.attempts[key]; ok {
		return t.failures
	}
	return 0
}

// Tracked returns the number of keys with a failure history.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

// Stop stops the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) delayFor(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	if failures <= len(rl.policy.Delays) {
		return rl.policy.Delays[failures-1]
	}
	return rl.policy.Lockout
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(CleanupIntervalRateLimit)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.policy.IdleAfter)
	for key, t := range rl.attempts {
		if t.lastFailed.Before(cutoff) && !now.Before(t.retryAt) {
			delete(rl.attempts, key)
		}
	}
}

// FormatRetryAfter converts d to whole seconds for a Retry-After header,
// rounding up.
func FormatRetryAfter(d time.Duration) int {
	seconds := int(d / time.Second)
	if d%time.Second > 0 {
		seconds++
	}
	return seconds
}
