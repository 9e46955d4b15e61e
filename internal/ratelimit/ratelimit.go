// Package ratelimit implements a sliding-window request throttle.
// Single-process and in-memory: multi-instance deployments need a
// shared store behind the same CheckAndRecord contract.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	history     map[string][]time.Time
	now         func() time.Time
}

func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 10
	}
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		history:     make(map[string][]time.Time),
		now:         time.Now,
	}
}

// CheckAndRecord prunes the key's window, then either records the
// request or denies it with the seconds until the oldest recorded
// request leaves the window. The mutex is held across prune, check and
// append so two calls racing at the admission boundary serialize.
func (l *Limiter) CheckAndRecord(key string) (bool, int) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	requests := l.history[key]
	kept := requests[:0]
	for _, ts := range requests {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.history[key] = kept
		retryAfter := int(kept[0].Add(l.window).Sub(now).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	l.history[key] = append(kept, now)
	return true, 0
}

// Reset clears a key's history. Administrative escape hatch.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.history, key)
}

// Sweep drops keys whose entire history has aged out, bounding memory
// under key churn. Called periodically by the scheduler.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, requests := range l.history {
		idle := true
		for _, ts := range requests {
			if ts.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.history, key)
			removed++
		}
	}
	return removed
}
