package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func serveLogged(t *testing.T, status int, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.168.1.1:12345"
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return buf.String(), rec
}

func TestRequestLoggingMiddleware_LogsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
	req.Header.Set("User-Agent", "chartwise-ios/2.1")
	req.Header.Set("X-Forwarded-For", "203.0.113.195")

	out, _ := serveLogged(t, http.StatusCreated, req)

	for _, want := range []string{"POST", "/api/analyses", "status=201", "duration_ms", "203.0.113.195", "chartwise-ios/2.1", "request_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log should contain %q, got: %s", want, out)
		}
	}
}

func TestRequestLoggingMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	out, _ := serveLogged(t, http.StatusServiceUnavailable, httptest.NewRequest(http.MethodGet, "/api/usage", nil))

	if !strings.Contains(out, "level=WARN") {
		t.Errorf("5xx should log at WARN, got: %s", out)
	}
	if !strings.Contains(out, "status=503") {
		t.Errorf("log should contain status, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analyses?token=secrettoken123&session_id=cs_live_abc&limit=5", nil)

	out, _ := serveLogged(t, http.StatusOK, req)

	for _, secret := range []string{"secrettoken123", "cs_live_abc"} {
		if strings.Contains(out, secret) {
			t.Errorf("log should not contain %q, got: %s", secret, out)
		}
	}
	if !strings.Contains(out, "limit=5") {
		t.Errorf("non-sensitive params should be kept, got: %s", out)
	}
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/healthz", "/metrics", "/files/charts/a.png"} {
		t.Run(path, func(t *testing.T) {
			out, rec := serveLogged(t, http.StatusOK, httptest.NewRequest(http.MethodGet, path, nil))

			if out != "" {
				t.Errorf("%s should not be logged, got: %s", path, out)
			}
			if rec.Header().Get(RequestIDHeader) == "" {
				t.Error("request ID should still be assigned")
			}
		})
	}
}

func TestRequestLoggingMiddleware_RequestID(t *testing.T) {
	t.Run("generated when absent", func(t *testing.T) {
		_, rec := serveLogged(t, http.StatusOK, httptest.NewRequest(http.MethodGet, "/api/usage", nil))

		if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
			t.Errorf("expected a UUID request ID, got %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("inbound UUID reused", func(t *testing.T) {
		inbound := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
		req.Header.Set(RequestIDHeader, inbound)

		out, rec := serveLogged(t, http.StatusOK, req)

		if rec.Header().Get(RequestIDHeader) != inbound {
			t.Errorf("expected %s, got %s", inbound, rec.Header().Get(RequestIDHeader))
		}
		if !strings.Contains(out, inbound) {
			t.Errorf("log should contain inbound ID, got: %s", out)
		}
	})

	t.Run("malformed inbound replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
		req.Header.Set(RequestIDHeader, "x\nforged=1")

		out, rec := serveLogged(t, http.StatusOK, req)

		if strings.Contains(out, "forged") {
			t.Errorf("malformed ID should not be logged, got: %s", out)
		}
		if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
			t.Errorf("expected a fresh UUID, got %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("available to handlers", func(t *testing.T) {
		var seen string
		mw := NewRequestLoggingMiddleware(testLogger())
		h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil))

		if seen == "" || seen != rec.Header().Get(RequestIDHeader) {
			t.Errorf("context ID %q should match header %q", seen, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestRequestLoggingMiddleware_PassesResponseThrough(t *testing.T) {
	mw := NewRequestLoggingMiddleware(testLogger())
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("response body"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/support/tickets", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Custom") != "value" {
		t.Error("custom header should be preserved")
	}
	if rec.Body.String() != "response body" {
		t.Errorf("response body should be preserved, got: %s", rec.Body.String())
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"/api/usage", "", "/api/usage"},
		{"/a", "Token=x", "/a?Token=[REDACTED]"},
		{"/a", "flag", "/a"},
		{"/a", "limit=10&offset=20", "/a?limit=10&offset=20"},
	}

	for _, tt := range tests {
		if got := sanitizePath(tt.path, tt.query); got != tt.want {
			t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.query, got, tt.want)
		}
	}
}
