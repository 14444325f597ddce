/*
Package limiter provides rate limiting keyed by an arbitrary string.

It uses the Token Bucket algorithm (rate.Limiter) per key and a cleanup goroutine that
periodically removes idle limiters. The chat transport keys it by chat id to throttle
outbound typing notifications.
*/
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gymbro/internal/pkg/logx"
)

// cleanupInterval is how often idle limiters are evicted.
const cleanupInterval = 3 * time.Minute

// KeyedLimiter holds one token bucket per key.
type KeyedLimiter struct {
	// mu protects concurrent access to the limits map.
	mu sync.RWMutex

	// limits maps a key to its *rate.Limiter.
	limits map[string]*rate.Limiter

	// r is the refill rate of each bucket.
	r rate.Limit

	// b is the bucket size.
	b int

	stop     chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter creates a KeyedLimiter with rate r and burst b and starts its cleanup goroutine.
// Call Stop to release the goroutine.
func NewKeyedLimiter(r rate.Limit, b int) *KeyedLimiter {
	k := &KeyedLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
	}

	go k.cleanUpIdle()

	return k
}

// GetLimiter returns the limiter for key, creating it on first use.
// Creation uses double-checked locking.
func (k *KeyedLimiter) GetLimiter(key string) *rate.Limiter {
	k.mu.RLock()
	limiter, exists := k.limits[key]
	k.mu.RUnlock()

	if !exists {
		k.mu.Lock()
		limiter, exists = k.limits[key]
		if !exists {
			limiter = rate.NewLimiter(k.r, k.b)
			k.limits[key] = limiter
		}
		k.mu.Unlock()
	}

	return limiter
}

// Allow reports whether an event for key may happen now.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.GetLimiter(key).Allow()
}

// Forget drops the limiter for key.
func (k *KeyedLimiter) Forget(key string) {
	k.mu.Lock()
	delete(k.limits, key)
	k.mu.Unlock()
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.limits)
}

// Stop terminates the cleanup goroutine. It is safe to call more than once.
func (k *KeyedLimiter) Stop() {
	k.stopOnce.Do(func() { close(k.stop) })
}

// cleanUpIdle periodically removes limiters whose bucket is full again.
func (k *KeyedLimiter) cleanUpIdle() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			k.evictIdle(time.Now())
		}
	}
}

// evictIdle removes every limiter whose token bucket is full at now.
func (k *KeyedLimiter) evictIdle(now time.Time) int {
	k.mu.Lock()
	count := 0
	for key, limiter := range k.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(k.limits, key)
			count++
		}
	}
	remaining := len(k.limits)
	k.mu.Unlock()

	if count > 0 {
		logx.Debug("Limiter cleanup removed idle keys", "removed", count, "remaining", remaining)
	}
	return count
}
