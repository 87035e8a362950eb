package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/seva-flowers/api/internal/platform/auth"
	"github.com/seva-flowers/api/internal/platform/httpx"
)

// RateLimitMiddleware throttles requests per authenticated user, falling
// back to the client address for anonymous traffic. A non-positive limit
// disables throttling.
func RateLimitMiddleware(limit int, window time.Duration, clock func() time.Time) func(http.Handler) http.Handler {
	limiter := newWindowLimiter(limit, window, clock)
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && identity.UserID != "" {
				key = identity.UserID
			}
			if !limiter.allow(key) {
				w.Header().Set("Retry-After", "60")
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// windowLimiter counts requests per key inside fixed windows. State for
// expired windows is evicted opportunistically on new-window writes.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	counts map[string]windowEntry
}

type windowEntry struct {
	count int
	reset time.Time
}

func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) *windowLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		counts: make(map[string]windowEntry),
	}
}

func (l *windowLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.counts[key]
	if !ok || now.After(entry.reset) {
		l.counts[key] = windowEntry{count: 1, reset: now.Add(l.window)}
		l.evictStaleLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.counts[key] = entry
	return true
}

func (l *windowLimiter) evictStaleLocked(now time.Time) {
	for key, entry := range l.counts {
		if now.After(entry.reset) {
			delete(l.counts, key)
		}
	}
}
