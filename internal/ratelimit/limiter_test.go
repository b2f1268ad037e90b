package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewLimiter(WithClock(clock.Now)), clock
}

func TestLimiterAllowsUpToBudget(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < DefaultMaxAttempts; i++ {
		d := l.CheckAndRecordAttempt("vault-1")
		require.True(t, d.Allowed, "attempt %d", i+1)
		assert.Equal(t, DefaultMaxAttempts-i-1, d.Remaining)
	}

	d := l.CheckAndRecordAttempt("vault-1")
	assert.False(t, d.Allowed)
	assert.Equal(t, DefaultLockout, d.RetryAfter)
}

func TestLimiterRetryAfterDecreases(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.CheckAndRecordAttempt("vault-1")
	}

	first := l.CheckAndRecordAttempt("vault-1")
	require.False(t, first.Allowed)

	clock.Advance(2 * time.Minute)
	second := l.CheckAndRecordAttempt("vault-1")
	require.False(t, second.Allowed)
	assert.Less(t, second.RetryAfter, first.RetryAfter)
	assert.Equal(t, 3*time.Minute, second.RetryAfter)
}

func TestLimiterLockoutExpires(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.CheckAndRecordAttempt("vault-1")
	}
	require.False(t, l.CheckAndRecordAttempt("vault-1").Allowed)

	clock.Advance(DefaultLockout + time.Second)

	d := l.CheckAndRecordAttempt("vault-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, DefaultMaxAttempts-1, d.Remaining)
}

func TestLimiterRecordSuccessResets(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		l.CheckAndRecordAttempt("vault-1")
	}
	assert.Equal(t, 1, l.Remaining("vault-1"))

	l.RecordSuccess("vault-1")
	assert.Equal(t, DefaultMaxAttempts, l.Remaining("vault-1"))

	d := l.CheckAndRecordAttempt("vault-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, DefaultMaxAttempts-1, d.Remaining)
}

func TestLimiterVaultsIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.CheckAndRecordAttempt("vault-1")
	}
	require.False(t, l.CheckAndRecordAttempt("vault-1").Allowed)

	d := l.CheckAndRecordAttempt("vault-2")
	assert.True(t, d.Allowed)
	assert.Equal(t, DefaultMaxAttempts-1, d.Remaining)
}

func TestLimiterWithPolicy(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := NewLimiter(WithPolicy(2, time.Minute), WithClock(clock.Now))

	require.True(t, l.CheckAndRecordAttempt("vault-1").Allowed)
	require.True(t, l.CheckAndRecordAttempt("vault-1").Allowed)

	d := l.CheckAndRecordAttempt("vault-1")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestLimiterConcurrentAttemptsNeverExceedBudget(t *testing.T) {
	l, _ := newTestLimiter()

	const workers = 50
	var allowed int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecordAttempt("vault-1").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(DefaultMaxAttempts), allowed)
}
