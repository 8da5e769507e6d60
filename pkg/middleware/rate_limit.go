package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
)

const UserIDHeader = "X-User-ID"

type KeyExtractor func(r *http.Request) string

// UserRateLimiter is a sliding-window limiter keyed by caller identity.
// Requests without a key are not limited.
type UserRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	extract  KeyExtractor
	log      *logger.Logger
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewUserRateLimiter(limit int, window time.Duration, extractor KeyExtractor, log *logger.Logger) *UserRateLimiter {
	if extractor == nil {
		extractor = DefaultUserExtractor
	}
	limiter := &UserRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		extract:  extractor,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *UserRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func UserRateLimit(limiter *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.extract(r)

			if !limiter.Allow(key) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFromContext(r.Context()),
					"user_id", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", retryAfterSeconds(limiter.window))
				_ = httputil.WriteError(w, apperrors.RateLimited("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultUserExtractor reads the caller id from X-User-ID, falling back to
// the user_id query parameter used by the chat endpoints.
func DefaultUserExtractor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
