// Package ratelimit provides a sliding-window request limiter keyed by an
// arbitrary string (session id, client address). State lives in memory; each
// process enforces its own window.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	window  time.Duration
	maxHits int
}

func NewLimiter(window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		hits:    make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
	}
}

// Allow records a hit for key and reports whether it fits inside the window.
// A denied hit is not recorded, so a client that keeps retrying does not
// extend its own penalty.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	recent := l.prune(key, now)
	if len(recent) >= l.maxHits {
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

// prune drops hits older than the window and forgets keys that have gone
// idle, so the map does not grow with every client ever seen.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	recent := l.hits[key][:0]
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			recent = append(recent, hit)
		}
	}
	if len(recent) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = recent
	return recent
}
