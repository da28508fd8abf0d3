// Package middleware contains HTTP middleware for the Chartwise API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/handler"
)

// SessionResolver looks up the user that owns a session token.
// service.UserService implements it.
type SessionResolver interface {
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware provides authentication middleware functionality.
type AuthMiddleware struct {
	sessions SessionResolver
	admins   auth.Admins
	logger   *slog.Logger
	isSecure bool
}

// NewAuthMiddleware creates a new AuthMiddleware. isSecure sets the Secure
// flag when a stale cookie is cleared.
func NewAuthMiddleware(sessions SessionResolver, admins auth.Admins, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		admins:   admins,
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithUser loads the user from the session cookie or an
// "Authorization: Bearer" header and stores it in the request context.
// The request continues whether or not a user was found.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.sessions.GetBySessionToken(r.Context(), token)
		if err != nil {
			if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
				// The session may be valid; do not log the user out.
				handler.ErrorResponse(w, r, m.logger, domain.Unavailable(err, "AuthMiddleware.WithUser", "Session lookup failed"))
				return
			}
			if fromCookie {
				handler.ClearSessionCookie(w, m.isSecure)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user, token)))
	})
}

// RequireUser rejects requests without an authenticated user with 401.
// It must run after WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only staff listed in ADMIN_EMAILS. It must run after
// WithUser.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		if !m.admins.IsAdmin(user) {
			m.logger.Warn("non-admin denied admin route", "user_id", user.ID, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionToken returns the bearer token if present, otherwise the session
// cookie. fromCookie reports which one was used.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
		return "", false
	}

	cookie, err := r.Cookie(handler.SessionCookieName)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// Stack composes middleware. The first one listed is the outermost.
//
//	requireUser := Stack(authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /api/usage", requireUser(usageHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAdmin
)
