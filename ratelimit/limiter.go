// Package ratelimit throttles deliveries per transfer method.
package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per sink name. The burst equals the
// per-second rate, rounded up, with a minimum of one.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether the sink may send now.
// A perSecond of 0 or less means unlimited.
func (l *Limiter) Allow(name string, perSecond float64) bool {
	if perSecond <= 0 {
		return true
	}
	return l.bucket(name, perSecond).Allow()
}

// Wait blocks until the sink may send or ctx is done.
func (l *Limiter) Wait(ctx context.Context, name string, perSecond float64) error {
	if perSecond <= 0 {
		return nil
	}
	return l.bucket(name, perSecond).Wait(ctx)
}

// Reset clears the state for a sink.
func (l *Limiter) Reset(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, name)
}

func (l *Limiter) bucket(name string, perSecond float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := rate.Limit(perSecond)
	burst := max(1, int(math.Ceil(perSecond)))

	b, ok := l.buckets[name]
	if !ok {
		b = rate.NewLimiter(limit, burst)
		l.buckets[name] = b
		return b
	}
	if b.Limit() != limit {
		b.SetLimit(limit)
		b.SetBurst(burst)
	}
	return b
}
