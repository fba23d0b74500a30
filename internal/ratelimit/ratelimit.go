// Package ratelimit throttles maintenance triggers per source using a token
// bucket per key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed manages one token bucket per key. Keys are trigger sources such
// as "watcher" or "foreground"; a burst from one source never starves
// another.
type Keyed struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter allowing rps events per second per key with
// the given burst. A non-positive rps disables throttling.
func New(rps float64, burst int) *Keyed {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Every returns a keyed limiter allowing one event per interval per key.
func Every(interval time.Duration) *Keyed {
	if interval <= 0 {
		return New(0, 1)
	}
	return New(float64(time.Second)/float64(interval), 1)
}

// Allow reports whether an event for key may proceed now. It never blocks.
func (k *Keyed) Allow(key string) bool {
	return k.limiter(key).Allow()
}

// Wait blocks until an event for key may proceed or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.limiter(key).Wait(ctx)
}

// Len returns the number of keys seen.
func (k *Keyed) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.limiters)
}

func (k *Keyed) limiter(key string) *rate.Limiter {
	k.mu.RLock()
	l, ok := k.limiters[key]
	k.mu.RUnlock()
	if ok {
		return l
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok = k.limiters[key]; ok {
		return l
	}
	l = rate.NewLimiter(k.limit, k.burst)
	k.limiters[key] = l
	return l
}
