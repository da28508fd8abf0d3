package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_Allow_UnderLimit(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute, testLogger())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiter_Allow_AtLimit(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute, testLogger())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow("192.168.1.1")
	}

	if rl.Allow("192.168.1.1") {
		t.Error("6th request should be blocked")
	}
}

func TestRateLimiter_Allow_DifferentKeys(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, testLogger())
	defer rl.Stop()

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")

	if rl.Allow("192.168.1.1") {
		t.Error("first IP should be blocked")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("second IP should be allowed")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, testLogger())
	defer rl.Stop()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.take("k", start)
	rl.take("k", start.Add(time.Second))

	allowed, retry := rl.take("k", start.Add(20*time.Second))
	if allowed {
		t.Fatal("expected block inside the window")
	}
	if retry != 40*time.Second {
		t.Errorf("expected retry after 40s, got %v", retry)
	}

	if allowed, _ := rl.take("k", start.Add(time.Minute)); !allowed {
		t.Error("expected a fresh window after expiry")
	}
}

func TestRateLimiter_Take_Concurrent(t *testing.T) {
	rl := NewRateLimiter(50, time.Minute, testLogger())
	defer rl.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Take(context.Background(), "shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed, got %d", allowed)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, testLogger())
	rl.Stop()
	rl.Stop()
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequests(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, testLogger())
	defer rl.Stop()
	h := NewRateLimitMiddleware("test", rl, testLogger()).Limit(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimitMiddleware_BlocksWithJSON(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, testLogger())
	defer rl.Stop()
	h := NewRateLimitMiddleware("login", rl, testLogger()).Limit(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	send()
	rec := send()

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "rate_limit" {
		t.Errorf("expected code rate_limit, got %q", body.Code)
	}
}

type stubLimiter struct {
	allowed bool
	retry   time.Duration
	keys    []string
}

func (s *stubLimiter) Take(_ context.Context, key string) (bool, time.Duration) {
	s.keys = append(s.keys, key)
	return s.allowed, s.retry
}

func TestRateLimitMiddleware_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name  string
		retry time.Duration
		want  string
	}{
		{"rounds to seconds", 90*time.Second + 400*time.Millisecond, "90"},
		{"never below one", 100 * time.Millisecond, "1"},
		{"unknown", 0, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := &stubLimiter{allowed: false, retry: tt.retry}
			h := NewRateLimitMiddleware("x", lim, testLogger()).Limit(okHandler())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := rec.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitMiddleware_KeysByClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:1234", "10.0.0.1"},
		{"remote addr without port", nil, "10.0.0.1", "10.0.0.1"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.1:1", "198.51.100.4"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, "10.0.0.1:1", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := &stubLimiter{allowed: true}
			h := NewRateLimitMiddleware("x", lim, testLogger()).Limit(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if len(lim.keys) != 1 || lim.keys[0] != tt.want {
				t.Errorf("keys = %v, want [%s]", lim.keys, tt.want)
			}
		})
	}
}

// =============================================================================
// RouteLimiters Tests
// =============================================================================

func TestRouteLimiters_UseFactoryLimits(t *testing.T) {
	got := map[string]int{}
	factory := func(name string, limit int, window time.Duration) Limiter {
		got[name] = limit
		return &stubLimiter{allowed: true}
	}

	NewRouteLimiters(factory, testLogger())

	want := map[string]int{"login": 5, "register": 3, "tickets": 10}
	for name, limit := range want {
		if got[name] != limit {
			t.Errorf("%s limit = %d, want %d", name, got[name], limit)
		}
	}
}

func TestRouteLimiters_LimitRegister(t *testing.T) {
	limiters := NewRouteLimiters(NewMemoryLimiterFactory(testLogger()), testLogger())
	h := limiters.LimitRegister(okHandler())

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{200, 200, 200, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: got %d, want %d", i+1, codes[i], want[i])
		}
	}
}
