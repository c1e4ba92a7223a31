package telemetry

import (
	"sync"
	"time"
)

// subscribeLimiter enforces a maximum number of new subscriptions within a
// sliding time window, adapted from the teacher's internal/http rate limiter
// for the broker's WebSocket upgrade endpoint. Here it guards
// Handler.ServeHTTP against a client hammering new subscriber_id values
// instead of acking and reusing one.
type subscribeLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
}

// newSubscribeLimiter constructs a limiter allowing up to limit subscribe
// attempts per window. A non-positive window or limit disables limiting.
func newSubscribeLimiter(window time.Duration, limit int, timeSource func() time.Time) *subscribeLimiter {
	if window <= 0 || limit <= 0 {
		return &subscribeLimiter{window: window, limit: limit}
	}
	if timeSource == nil {
		timeSource = time.Now
	}
	return &subscribeLimiter{window: window, limit: limit, now: timeSource}
}

// allow reports whether another subscribe attempt may proceed right now.
func (l *subscribeLimiter) allow() bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.events[:0]
	for _, ts := range l.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.events = kept
	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}
