package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window request limiter keyed by caller.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	cleanup *time.Ticker
	done    chan struct{}
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go limiter.cleanupOldBuckets()
	return limiter
}

// Allow applies the default limit. Anonymous callers (empty key) are not limited here.
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	return l.allow(key, l.maxReqs, l.window)
}

// AllowStrict allows requests with stricter limits for sensitive endpoints
// such as STK push initiation.
func (l *Limiter) AllowStrict(identifier string, maxReqs int, window time.Duration) bool {
	return l.allow("strict:"+identifier, maxReqs, window)
}

func (l *Limiter) allow(key string, maxReqs int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-window)
	kept := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.requests = kept
	b.lastSeen = now

	if len(b.requests) >= maxReqs {
		return false
	}

	b.requests = append(b.requests, now)
	return true
}

func (l *Limiter) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			staleThreshold := time.Now().Add(-15 * time.Minute)
			for key, b := range l.buckets {
				if b.lastSeen.Before(staleThreshold) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	l.cleanup.Stop()
	close(l.done)
}
