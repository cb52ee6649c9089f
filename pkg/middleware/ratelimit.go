/**
 * @description
 * Rate limiting middleware to prevent abuse of the API.
 * Uses an in-memory token bucket per client IP.
 */
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	buckets     map[string]*TokenBucket
	mutex       sync.Mutex
	capacity    int
	refillEvery time.Duration
	idleTTL     time.Duration
	limitHeader string
	now         func() time.Time
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
}

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
}

// NewRateLimiter creates a limiter that refills one token per window/rate,
// holding at most burst tokens.
func NewRateLimiter(rate int, burst int, window time.Duration) *RateLimiter {
	if rate < 1 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	rl := &RateLimiter{
		buckets:     make(map[string]*TokenBucket),
		capacity:    burst,
		refillEvery: window / time.Duration(rate),
		idleTTL:     10 * time.Minute,
		limitHeader: strconv.Itoa(rate),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go rl.cleanupExpiredBuckets(5 * time.Minute)

	return rl
}

// Allow reports whether a request from key may proceed and consumes a token if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &TokenBucket{tokens: rl.capacity, lastRefill: now}
		rl.buckets[key] = bucket
	}
	bucket.lastSeen = now

	if refills := int(now.Sub(bucket.lastRefill) / rl.refillEvery); refills > 0 {
		bucket.tokens = min(rl.capacity, bucket.tokens+refills)
		bucket.lastRefill = bucket.lastRefill.Add(time.Duration(refills) * rl.refillEvery)
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// RetryAfter is the time until key's bucket gains its next token.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		return 0
	}
	wait := bucket.lastRefill.Add(rl.refillEvery).Sub(rl.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// NewPerMinuteRateLimiter allows requestsPerMinute per key with a burst of a
// few seconds' worth. The caller owns the limiter and must Stop it.
func NewPerMinuteRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	burst := requestsPerMinute / 30
	if burst < 1 {
		burst = 1
	}
	return NewRateLimiter(requestsPerMinute, burst, time.Minute)
}

// Stop ends the background cleanup goroutine and waits for it to exit.
// It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
	<-rl.cleanupDone
}

// cleanupExpiredBuckets removes buckets that have been idle for idleTTL.
func (rl *RateLimiter) cleanupExpiredBuckets(interval time.Duration) {
	defer close(rl.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastSeen) > rl.idleTTL {
			delete(rl.buckets, key)
		}
	}
}

// Middleware limits each client IP with rl. The X-RateLimit-Limit header
// carries the configured rate per window.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			w.Header().Set("X-RateLimit-Limit", rl.limitHeader)

			if !rl.Allow(clientIP) {
				retryAfter := int(rl.RetryAfter(clientIP).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later."}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
