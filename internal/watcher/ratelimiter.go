package watcher

import "time"

// Clock provides the current time. Tests substitute a fake.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// RateLimiter implements leading-edge suppression: the first event passes,
// and later events pass only once Window has elapsed since the last one that
// did. Suppressed events are dropped, not delayed.
//
// A RateLimiter is not safe for concurrent use; the watcher loop owns it.
type RateLimiter struct {
	Window    time.Duration
	lastFired time.Time
	fired     bool
}

// NewRateLimiter returns a limiter that has never fired.
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{Window: window}
}

// ShouldForward reports whether an event observed at now should be
// forwarded, and records now as the last forward time when it is.
func (r *RateLimiter) ShouldForward(now time.Time) bool {
	if r.fired && now.Sub(r.lastFired) < r.Window {
		return false
	}
	r.fired = true
	r.lastFired = now
	return true
}

// LastFired returns the time of the last forwarded event, if any.
func (r *RateLimiter) LastFired() (time.Time, bool) {
	return r.lastFired, r.fired
}
