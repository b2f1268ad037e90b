// Package ratelimit gates vault unlock attempts. Each vault has its own
// attempt counter and lockout clock; unrelated vaults never block each
// other.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts before a vault locks out.
	DefaultMaxAttempts = 5
	// DefaultLockout is how long a locked vault stays locked.
	DefaultLockout = 5 * time.Minute
)

// Decision is the outcome of an attempt check.
type Decision struct {
	Allowed bool
	// Remaining attempts after this one, when allowed.
	Remaining int
	// RetryAfter until the lockout clears, when denied.
	RetryAfter time.Duration
}

type vaultState struct {
	mu             sync.Mutex
	failedAttempts int
	lockoutUntil   time.Time
}

// Limiter tracks unlock attempts per vault. State is in-memory only;
// lockouts do not survive process restart.
type Limiter struct {
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time

	mu     sync.Mutex
	vaults map[string]*vaultState
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicy overrides the attempt budget and lockout window.
func WithPolicy(maxAttempts int, lockout time.Duration) Option {
	return func(l *Limiter) {
		l.maxAttempts = maxAttempts
		l.lockout = lockout
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter with the default policy of 5 attempts and a
// 5-minute lockout.
func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
		now:         time.Now,
		vaults:      make(map[string]*vaultState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecordAttempt must be called, and must return an allowed
// decision, before any decryption attempt. The check and the increment are
// a single critical section per vault, so two concurrent callers can never
// both slip past the limit. Every attempt counts as failed until
// RecordSuccess clears the vault; the lockout clock starts the moment the
// budget is exhausted.
func (l *Limiter) CheckAndRecordAttempt(vaultID string) Decision {
	state := l.state(vaultID)

	state.mu.Lock()
	defer state.mu.Unlock()

	now := l.now()

	if !state.lockoutUntil.IsZero() {
		if now.Before(state.lockoutUntil) {
			return Decision{RetryAfter: state.lockoutUntil.Sub(now)}
		}
		// Lockout elapsed; reset lazily.
		state.failedAttempts = 0
		state.lockoutUntil = time.Time{}
	}

	state.failedAttempts++
	if state.failedAttempts >= l.maxAttempts {
		state.lockoutUntil = now.Add(l.lockout)
	}

	return Decision{
		Allowed:   true,
		Remaining: l.maxAttempts - state.failedAttempts,
	}
}

// RecordSuccess clears all attempt state for a vault, restoring the full
// allowance.
func (l *Limiter) RecordSuccess(vaultID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.vaults, vaultID)
}

// Remaining reports the attempts left for a vault without recording one.
func (l *Limiter) Remaining(vaultID string) int {
	state := l.state(vaultID)

	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.lockoutUntil.IsZero() && l.now().Before(state.lockoutUntil) {
		return 0
	}
	if !state.lockoutUntil.IsZero() {
		return l.maxAttempts
	}
	return l.maxAttempts - state.failedAttempts
}

func (l *Limiter) state(vaultID string) *vaultState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.vaults[vaultID]
	if !ok {
		state = &vaultState{}
		l.vaults[vaultID] = state
	}
	return state
}
