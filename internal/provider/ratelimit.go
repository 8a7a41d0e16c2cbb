package provider

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a sliding-window call budget per key. Callers wait
// for a slot instead of failing when the window is full.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
	now    func() time.Time
}

// NewLimiter allows limit calls per window for each key. A limit of
// zero or less disables limiting.
func NewLimiter(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Reserve takes a slot for key if one is free. When the window is full
// it returns false and the wait until the oldest call slides out.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.calls[key][:0]
	for _, t := range l.calls[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) < l.limit {
		l.calls[key] = append(recent, now)
		return true, 0
	}
	l.calls[key] = recent
	retryAfter := recent[0].Sub(cutoff)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return false, retryAfter
}

// Wait blocks until a slot is free for key or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		ok, retryAfter := l.Reserve(key)
		if ok {
			return nil
		}
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
