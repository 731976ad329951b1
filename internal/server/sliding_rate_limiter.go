package server

import (
	"sync"
	"time"
)

// SlidingWindowRateLimiter caps how many messages one live session may send
// per window. Repeated violations back off exponentially; messages refused
// during a backoff do not extend it.
type SlidingWindowRateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	timestamps     []time.Time
	mutex          sync.Mutex

	violations   int
	lastViolated time.Time
	backoffUntil time.Time

	baseBackoff       time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64

	now func() time.Time
}

// NewSlidingWindowRateLimiter creates a limiter allowing maxRequests per
// windowDuration.
func NewSlidingWindowRateLimiter(maxRequests int, windowDuration time.Duration) *SlidingWindowRateLimiter {
	return &SlidingWindowRateLimiter{
		maxRequests:       maxRequests,
		windowDuration:    windowDuration,
		timestamps:        make([]time.Time, 0, maxRequests+1),
		baseBackoff:       time.Second,
		maxBackoff:        time.Minute,
		backoffMultiplier: 2.0,
		now:               time.Now,
	}
}

// IsAllowed records a message and reports whether it fits the budget.
func (rl *SlidingWindowRateLimiter) IsAllowed() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	if now.Before(rl.backoffUntil) {
		return false
	}

	rl.cleanOldTimestamps(now)

	if len(rl.timestamps) >= rl.maxRequests {
		rl.recordViolation(now)
		return false
	}

	// forgive clients that stayed quiet for two windows
	if rl.violations > 0 && now.Sub(rl.lastViolated) > 2*rl.windowDuration {
		rl.violations = 0
		rl.backoffUntil = time.Time{}
	}

	rl.timestamps = append(rl.timestamps, now)

	return true
}

// must be called with the mutex held
func (rl *SlidingWindowRateLimiter) recordViolation(now time.Time) {
	rl.violations++
	rl.lastViolated = now

	backoff := rl.baseBackoff
	for i := 1; i < rl.violations; i++ {
		backoff = time.Duration(float64(backoff) * rl.backoffMultiplier)
		if backoff > rl.maxBackoff {
			backoff = rl.maxBackoff
			break
		}
	}

	rl.backoffUntil = now.Add(backoff)
}

// must be called with the mutex held
func (rl *SlidingWindowRateLimiter) cleanOldTimestamps(now time.Time) {
	cutoff := now.Add(-rl.windowDuration)

	valid := 0
	for valid < len(rl.timestamps) && !rl.timestamps[valid].After(cutoff) {
		valid++
	}
	if valid > 0 {
		n := copy(rl.timestamps, rl.timestamps[valid:])
		rl.timestamps = rl.timestamps[:n]
	}
}
