package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/handler"
)

// Limiter decides whether one more request for key fits in its window.
// retryAfter is meaningful only when allowed is false.
type Limiter interface {
	Take(ctx context.Context, key string) (allowed bool, retryAfter time.Duration)
}

// LimiterFactory builds a named limiter. cache.Cache provides a Redis one;
// NewMemoryLimiterFactory an in-process one.
type LimiterFactory func(name string, limit int, window time.Duration) Limiter

// =============================================================================
// In-memory Rate Limiter
// =============================================================================

// RateLimiter tracks request counts per key in fixed windows. It is local to
// one process.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	stop    chan struct{}
	once    sync.Once
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
func NewRateLimiter(maxAttempts int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		entries:     make(map[string]*rateLimitEntry),
		stop:        make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// NewMemoryLimiterFactory returns a factory for in-memory limiters.
func NewMemoryLimiterFactory(logger *slog.Logger) LimiterFactory {
	return func(_ string, limit int, window time.Duration) Limiter {
		return NewRateLimiter(limit, window, logger)
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _ := rl.take(key, time.Now())
	return allowed
}

// Take implements Limiter.
func (rl *RateLimiter) Take(_ context.Context, key string) (bool, time.Duration) {
	return rl.take(key, time.Now())
}

func (rl *RateLimiter) take(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists || now.Sub(entry.windowStart) >= rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true, 0
	}

	if entry.count < rl.maxAttempts {
		entry.count++
		return true, 0
	}

	return false, rl.window - now.Sub(entry.windowStart)
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup periodically removes expired entries.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, entry := range rl.entries {
				if now.Sub(entry.windowStart) >= rl.window {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware applies a Limiter per client IP.
type RateLimitMiddleware struct {
	name    string
	limiter Limiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(name string, limiter Limiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		name:    name,
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware that answers 429 with Retry-After once a client
// exceeds the limit.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		allowed, retryAfter := m.limiter.Take(r.Context(), clientIP)
		if !allowed {
			m.logger.Warn("rate limit exceeded",
				"limiter", m.name,
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			w.Header().Set("Retry-After", strconv.Itoa(max(int(retryAfter.Round(time.Second).Seconds()), 1)))
			handler.ErrorResponse(w, r, m.logger, domain.RateLimit("RateLimitMiddleware."+m.name))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Route Limiters
// =============================================================================

// RouteLimiters holds the limiters for unauthenticated write endpoints.
//   - login: 5 per 15 minutes
//   - register: 3 per hour
//   - ticket intake: 10 per hour
type RouteLimiters struct {
	login    *RateLimitMiddleware
	register *RateLimitMiddleware
	tickets  *RateLimitMiddleware
}

// NewRouteLimiters builds the route limiters from factory.
func NewRouteLimiters(factory LimiterFactory, logger *slog.Logger) *RouteLimiters {
	return &RouteLimiters{
		login:    NewRateLimitMiddleware("login", factory("login", 5, 15*time.Minute), logger),
		register: NewRateLimitMiddleware("register", factory("register", 3, time.Hour), logger),
		tickets:  NewRateLimitMiddleware("tickets", factory("tickets", 10, time.Hour), logger),
	}
}

// LimitLogin rate limits login attempts.
func (l *RouteLimiters) LimitLogin(next http.Handler) http.Handler {
	return l.login.Limit(next)
}

// LimitRegister rate limits registrations.
func (l *RouteLimiters) LimitRegister(next http.Handler) http.Handler {
	return l.register.Limit(next)
}

// LimitTickets rate limits support ticket intake, which allows anonymous use.
func (l *RouteLimiters) LimitTickets(next http.Handler) http.Handler {
	return l.tickets.Limit(next)
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// The first X-Forwarded-For entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}

	return ip
}

var _ Limiter = (*RateLimiter)(nil)
