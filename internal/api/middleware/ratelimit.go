package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vibranic/central/internal/metrics"
)

// KeyLimiter rate limits by string key using a token bucket per key.
// Idle buckets are dropped after an hour so the map does not grow
// unbounded with rotated API keys.
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyBucket
	limit    rate.Limit
	burst    int
}

type keyBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyLimiter creates a limiter allowing perSecond sustained requests
// with the given burst per key.
func NewKeyLimiter(perSecond float64, burst int) *KeyLimiter {
	kl := &KeyLimiter{
		limiters: make(map[string]*keyBucket),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}

	// Start cleanup goroutine
	go kl.cleanupLoop()

	return kl
}

// Allow checks if a request is allowed for the given key.
func (kl *KeyLimiter) Allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	b, ok := kl.limiters[key]
	if !ok {
		b = &keyBucket{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.limiters[key] = b
	}
	b.lastSeen = time.Now()

	return b.limiter.Allow()
}

// cleanupLoop periodically removes idle buckets.
func (kl *KeyLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		kl.cleanup()
	}
}

// cleanup removes idle buckets.
func (kl *KeyLimiter) cleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for key, b := range kl.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(kl.limiters, key)
		}
	}
}

// RateLimitByApp returns middleware that rate limits ingestion by the
// authenticated application. Must run after APIKeyAuth.
func RateLimitByApp(limiter *KeyLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if app := GetApp(r.Context()); app != nil {
				key = app.ID
			}
			if key == "" {
				// Fall back to IP if no app
				key = ClientIP(r)
			}

			if !limiter.Allow(key) {
				metrics.HTTPRateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				jsonIngestError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
