package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Error Response Tests
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EQUOTA, http.StatusPaymentRequired},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse_QuotaExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/api/analyses", nil), newTestLogger(),
		domain.QuotaExceeded("AnalysisService.Analyze", 3, 3))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeError(t, rec)
	assert.Equal(t, domain.EQUOTA, body.Error.Code)
	assert.Contains(t, body.Error.Message, "3 of 3")
}

func TestErrorResponse_RetryAfter(t *testing.T) {
	t.Run("unavailable gets default", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil), newTestLogger(),
			domain.Unavailable(errors.New("dial tcp: refused"), "UsageService.CheckAndMaybeReset", "Usage store unavailable"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	})

	t.Run("existing header kept", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rec.Header().Set("Retry-After", "42")
		ErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), newTestLogger(), domain.RateLimit("login"))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	})

	t.Run("not set for client errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/", nil), newTestLogger(), domain.NotFound("op", "analysis", "x"))

		assert.Empty(t, rec.Header().Get("Retry-After"))
	})
}

func TestErrorResponse_HidesInternalDetails(t *testing.T) {
	dbErr := errors.New(`pq: relation "users" does not exist at 10.0.0.5:5432`)

	tests := []struct {
		name string
		err  error
	}{
		{"internal", domain.Internal(dbErr, "UserService.GetByID", "Failed to load user from users table")},
		{"unavailable", domain.Unavailable(dbErr, "UsageService.RecordUsage", "IncrementUsage failed")},
		{"plain error", fmt.Errorf("scan row: %w", dbErr)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), newTestLogger(), tt.err)

			body := rec.Body.String()
			for _, leak := range []string{"pq:", "10.0.0.5", "users table", "IncrementUsage", "Service"} {
				assert.NotContains(t, body, leak)
			}
		})
	}
}

func TestErrorResponse_LogsOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil), logger,
		domain.Internal(errors.New("connection reset"), "UsageService.Entitle", "Failed"))

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "op=UsageService.Entitle")
}

func TestErrorResponse_ClientErrorsLogAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ErrorResponse(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/analyses/x", nil), logger,
		domain.NotFound("AnalysisService.Get", "analysis", "x"))

	assert.Contains(t, buf.String(), "level=INFO")
	assert.NotContains(t, buf.String(), "level=ERROR")
}

func TestValidationErrorResponse(t *testing.T) {
	ve := domain.NewValidationError("TicketService.Create", "email", "Email is required")
	ve = domain.AddFieldError(ve, "subject", "Subject is required")

	t.Run("direct", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/api/support/tickets", nil), newTestLogger(), ve)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotContains(t, rec.Body.String(), "TicketService")

		body := decodeError(t, rec)
		assert.Equal(t, domain.EINVALID, body.Error.Code)
		assert.Equal(t, "Validation failed", body.Error.Message)
		assert.Equal(t, map[string]string{
			"email":   "Email is required",
			"subject": "Subject is required",
		}, body.Error.Fields)
	})

	t.Run("routed through ErrorResponse", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/api/support/tickets", nil), newTestLogger(),
			fmt.Errorf("create: %w", ve))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, decodeError(t, rec).Error.Fields, 2)
	})

	t.Run("non-validation error falls back", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/", nil), newTestLogger(), domain.Forbidden("op", "No"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestConvenienceResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		code   string
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { NotFoundResponse(w, r, newTestLogger()) }, http.StatusNotFound, domain.ENOTFOUND},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { UnauthorizedResponse(w, r, newTestLogger()) }, http.StatusUnauthorized, domain.EUNAUTHORIZED},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { ForbiddenResponse(w, r, newTestLogger()) }, http.StatusForbidden, domain.EFORBIDDEN},
		{"internal", func(w http.ResponseWriter, r *http.Request) {
			InternalErrorResponse(w, r, newTestLogger(), errors.New("secret detail"))
		}, http.StatusInternalServerError, domain.EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "secret detail")
			assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
		})
	}
}
