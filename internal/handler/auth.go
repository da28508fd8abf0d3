// Package handler contains the JSON HTTP handlers for the Chartwise API.
//
// This file implements registration, login, logout and account endpoints.
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/service"
)

// =============================================================================
// Session Cookie Configuration
// =============================================================================

const (
	// SessionCookieName is the name of the cookie that stores the session token.
	// The auth middleware reads the same name.
	SessionCookieName = "chartwise_session"

	sessionCookiePath = "/"
)

// =============================================================================
// Handler
// =============================================================================

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
//   - POST  /api/auth/register  -> Register
//   - POST  /api/auth/login     -> Login
//   - POST  /api/auth/logout    -> Logout
//   - GET   /api/auth/me        -> Me
//   - PATCH /api/auth/me        -> UpdateProfile
//   - POST  /api/auth/password  -> ChangePassword
type AuthHandler struct {
	userService service.UserService
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler. isSecure sets the Secure flag on
// the session cookie and should be true in production.
func NewAuthHandler(userService service.UserService, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes registers auth routes. limitLogin and limitRegister wrap the
// unauthenticated endpoints; requireUser wraps the rest.
func (h *AuthHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireUser func(http.Handler) http.Handler,
	limitLogin func(http.Handler) http.Handler,
	limitRegister func(http.Handler) http.Handler,
) {
	mux.Handle("POST /api/auth/register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(h.Login)))
	mux.Handle("POST /api/auth/logout", requireUser(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(h.Me)))
	mux.Handle("PATCH /api/auth/me", requireUser(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("POST /api/auth/password", requireUser(http.HandlerFunc(h.ChangePassword)))
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type profileRequest struct {
	Name string `json:"name"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register creates an account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Register"

	var req registerRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), user.Email, req.Password)
	if err != nil {
		// The account exists; the client can log in separately.
		h.logger.Error("auto-login after registration failed", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
		return
	}

	h.setSessionCookie(w, result.Token, result.ExpiresAt)
	h.logger.Info("user registered", "user_id", user.ID)

	writeJSON(w, http.StatusCreated, loginResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Login authenticates with email and password. The session token is set
// as a cookie and also returned for bearer use.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Login"

	var req loginRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var ve *domain.ValidationError
	if strings.TrimSpace(req.Email) == "" {
		ve = domain.NewValidationError(op, "email", "Email is required")
	}
	if req.Password == "" {
		if ve == nil {
			ve = domain.NewValidationError(op, "password", "Password is required")
		} else {
			ve = domain.AddFieldError(ve, "password", "Password is required")
		}
	}
	if ve != nil {
		ValidationErrorResponse(w, r, h.logger, ve)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, result.Token, result.ExpiresAt)
	h.logger.Info("user logged in", "user_id", result.User.ID)

	writeJSON(w, http.StatusOK, loginResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Logout deletes the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.GetSessionToken(r.Context()); token != "" {
		if err := h.userService.Logout(r.Context(), token); err != nil {
			h.logger.Error("failed to delete session", "error", err)
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateProfile changes the display name.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.UpdateProfile"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.userService.UpdateProfile(r.Context(), domain.ProfileUpdateParams{
		UserID: user.ID,
		Name:   strings.TrimSpace(req.Name),
	}); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	updated, err := h.userService.GetByID(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": updated})
}

// ChangePassword verifies the current password and sets a new one. Every
// session is revoked, including this one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.ChangePassword"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req passwordRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.userService.ChangePassword(r.Context(), domain.PasswordChangeParams{
		UserID:          user.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Session Cookie Helpers
// =============================================================================

// setSessionCookie sets an HttpOnly, SameSite=Lax session cookie that
// expires with the session.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     sessionCookiePath,
		Expires:  expiresAt,
		MaxAge:   max(int(time.Until(expiresAt).Seconds()), 1),
		HttpOnly: true,
		Secure:   h.isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	ClearSessionCookie(w, h.isSecure)
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     sessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
