package dispatch

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of backend turns allowed per
	// user per minute when no explicit limit is configured.
	DefaultRateLimit = 20

	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-user sliding-window limit on backend turns.
// It keeps at most limit timestamps per active user and is safe for
// concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string][]time.Time // userID → turn timestamps in window
}

// NewRateLimiter returns a RateLimiter that allows at most limit turns per
// user within window. limit ≤ 0 selects DefaultRateLimit and window ≤ 0 one
// minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string][]time.Time),
	}
}

// prune drops timestamps older than the window. Callers hold r.mu.
func (r *RateLimiter) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	existing := r.counters[userID]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(r.counters, userID)
		return nil
	}
	r.counters[userID] = valid
	return valid
}

// Allow records a turn for userID and reports whether it is within quota.
// Rejected turns are not recorded.
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.prune(userID, now)
	if len(valid) >= r.limit {
		return false
	}
	r.counters[userID] = append(valid, now)
	return true
}

// Remaining returns how many turns userID may still take in the current
// window.
func (r *RateLimiter) Remaining(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return max(r.limit-len(r.prune(userID, r.now())), 0)
}

// RetryAfter returns how long until userID regains a turn; zero when a turn
// is available now.
func (r *RateLimiter) RetryAfter(userID string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.prune(userID, now)
	if len(valid) < r.limit {
		return 0
	}
	return valid[0].Add(r.window).Sub(now)
}
