// Package auth provides authentication context helpers.
//
// This package is imported by both middleware and handler packages without
// causing import cycles.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/DukeRupert/chartwise/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the key used to store the authenticated user in context.
	userContextKey contextKey = "user"

	// tokenContextKey holds the raw session token the user authenticated with.
	tokenContextKey contextKey = "session_token"
)

// GetUser retrieves the authenticated user from the context.
//
// Returns nil if no user is authenticated.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest retrieves the authenticated user from the request context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user and the session token that identified them.
func SetUser(ctx context.Context, user *domain.User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetSessionToken returns the raw session token of the current request.
func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// Admins is the set of staff email addresses allowed into the ticket queue.
type Admins map[string]struct{}

// NewAdmins builds an admin set. Addresses compare case-insensitively.
func NewAdmins(emails []string) Admins {
	a := make(Admins, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			a[e] = struct{}{}
		}
	}
	return a
}

// IsAdmin reports whether user is staff. A nil user is never staff.
func (a Admins) IsAdmin(user *domain.User) bool {
	if user == nil {
		return false
	}
	_, ok := a[strings.ToLower(user.Email)]
	return ok
}
