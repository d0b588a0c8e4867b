package feed

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a max-requests-per-window policy over a sliding
// window. One limiter may be shared by several clients hitting the same
// provider; Acquire is safe for concurrent use.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	stamps      []time.Time
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per window.
// maxRequests < 1 disables limiting.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Acquire blocks until a request slot frees up or the context is done.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil || l.maxRequests < 1 {
		return ctx.Err()
	}

	for {
		l.mu.Lock()
		now := l.now()
		cutoff := now.Add(-l.window)

		// prune stamps that fell out of the window
		kept := l.stamps[:0]
		for _, ts := range l.stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		l.stamps = kept

		if len(l.stamps) < l.maxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Pending returns how many slots are currently consumed. Used by tests
// and the health endpoint.
func (l *RateLimiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
