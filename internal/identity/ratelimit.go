package identity

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/config"
)

// RateLimiter throttles sign-in attempts per client IP and email using a
// fixed window.
type RateLimiter struct {
	mu              sync.RWMutex
	attempts        map[string]*attemptRecord
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// NewRateLimiter creates a rate limiter from the auth configuration and
// starts its background cleanup.
func NewRateLimiter(cfg config.Auth) *RateLimiter {
	rl := &RateLimiter{
		attempts:        make(map[string]*attemptRecord),
		maxAttempts:     cfg.MaxLoginAttempts,
		windowDuration:  cfg.RateLimitWindow,
		lockoutDuration: cfg.LockoutDuration,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}
	if rl.maxAttempts <= 0 {
		rl.maxAttempts = 5
	}
	if rl.windowDuration <= 0 {
		rl.windowDuration = 15 * time.Minute
	}
	if rl.lockoutDuration <= 0 {
		rl.lockoutDuration = 30 * time.Minute
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func makeKey(ip, email string) string {
	return ip + ":" + strings.ToLower(email)
}

// Allow reports whether another attempt is allowed and, if not, how long
// the caller has to wait.
func (rl *RateLimiter) Allow(ip, email string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.RLock()
	record, exists := rl.attempts[makeKey(ip, email)]
	rl.mu.RUnlock()

	if !exists {
		return true, 0
	}
	if !record.lockedUntil.IsZero() && now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	if now.Sub(record.firstAttempt) > rl.windowDuration {
		return true, 0
	}
	if record.count < rl.maxAttempts {
		return true, 0
	}
	return false, rl.lockoutDuration
}

// RecordFailure counts a failed attempt and reports whether it triggered a
// lockout.
func (rl *RateLimiter) RecordFailure(ip, email string) (bool, time.Duration) {
	key := makeKey(ip, email)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, exists := rl.attempts[key]
	if !exists || now.Sub(record.firstAttempt) > rl.windowDuration {
		record = &attemptRecord{firstAttempt: now}
		rl.attempts[key] = record
	}

	record.count++
	if record.count >= rl.maxAttempts {
		record.lockedUntil = now.Add(rl.lockoutDuration)
		return true, rl.lockoutDuration
	}
	return false, 0
}

// RecordSuccess clears the failure record after a successful sign-in.
func (rl *RateLimiter) RecordSuccess(ip, email string) {
	rl.mu.Lock()
	delete(rl.attempts, makeKey(ip, email))
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()
	expiry := rl.windowDuration + rl.lockoutDuration

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, record := range rl.attempts {
		windowExpired := now.Sub(record.firstAttempt) > expiry
		lockoutExpired := record.lockedUntil.IsZero() || now.After(record.lockedUntil)
		if windowExpired && lockoutExpired {
			delete(rl.attempts, key)
		}
	}
}

// Middleware rejects sign-in requests from a throttled IP and email pair
// with 429. The email is peeked from the JSON body, which is restored for
// the handler.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.Request.Body == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var credentials struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(body, &credentials) != nil || credentials.Email == "" {
			c.Next()
			return
		}

		allowed, retryAfter := rl.Allow(c.ClientIP(), credentials.Email)
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many sign-in attempts",
				"code":        "too_many_attempts",
				"retry_after": retryAfter.String(),
			})
			return
		}

		c.Next()
	}
}
