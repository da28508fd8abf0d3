// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Not configurable at runtime so it cannot be weakened by a bad deploy.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// The token is hex-encoded to 64 characters for transmission.
	SessionTokenBytes = 32

	// DefaultSessionDuration is used when UserServiceConfig leaves it unset.
	// It matches the SESSION_DURATION default.
	DefaultSessionDuration = 7 * 24 * time.Hour

	// MinSessionDuration and MaxSessionDuration bound configured durations.
	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 30 * 24 * time.Hour

	// MinPasswordLength is the minimum password length (NIST SP 800-63B).
	MinPasswordLength = 8

	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72

	// pgUniqueViolation is the SQLSTATE for a unique constraint failure.
	pgUniqueViolation = "23505"
)

// invalidCredentials is the single message for every login failure so the
// response never reveals whether an email is registered.
const invalidCredentials = "Invalid email or password"

// commonPasswords are rejected even when they satisfy the other rules.
var commonPasswords = map[string]struct{}{
	"password1":   {},
	"password12":  {},
	"password123": {},
	"qwerty123":   {},
	"letmein1":    {},
	"welcome1":    {},
	"admin123":    {},
	"abc12345":    {},
	"iloveyou1":   {},
	"trading123":  {},
	"bitcoin1":    {},
}

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines the interface for account and session operations.
type UserService interface {
	// Register creates a new user account on the free plan with today's
	// usage counter at zero.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken validates a session and returns its user.
	// Returns domain.EUNAUTHORIZED if token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// UpdateProfile updates a user's display name.
	UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error

	// ChangePassword verifies the current password, stores the new one and
	// invalidates every session of the user.
	ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error

	// DeleteExpiredSessions removes expired sessions.
	DeleteExpiredSessions(ctx context.Context) error

	// =========================================================================
	// Billing Methods
	// =========================================================================

	// UpdateStripeCustomer saves the Stripe customer ID for a user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// UpdateSubscription updates a user's subscription status, tier, and ID.
	// The next entitlement check reads the new plan.
	UpdateSubscription(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus, tier domain.SubscriptionTier, subscriptionID string) error

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)
}

// UserRepository is the subset of repository.Queries the user service needs.
type UserRepository interface {
	CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (repository.User, error)
	UpdateUserProfile(ctx context.Context, arg repository.UpdateUserProfileParams) error
	UpdateUserPassword(ctx context.Context, arg repository.UpdateUserPasswordParams) error
	UpdateUserStripeCustomer(ctx context.Context, arg repository.UpdateUserStripeCustomerParams) error
	UpdateUserSubscription(ctx context.Context, arg repository.UpdateUserSubscriptionParams) error

	CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (repository.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) error
}

var _ UserRepository = (*repository.Queries)(nil)

// WelcomeMailer queues the welcome email. worker.Mailer implements it.
type WelcomeMailer interface {
	EnqueueWelcomeEmail(ctx context.Context, to, name string) error
}

// UserServiceConfig holds tunables for the user service.
type UserServiceConfig struct {
	SessionDuration time.Duration
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	repo            UserRepository
	clock           clock.Clock
	mailer          WelcomeMailer
	sessionDuration time.Duration
	logger          *slog.Logger
}

// NewUserService creates a new UserService instance. mailer may be nil.
func NewUserService(repo UserRepository, clk clock.Clock, mailer WelcomeMailer, cfg UserServiceConfig, logger *slog.Logger) UserService {
	return &userService{
		repo:            repo,
		clock:           clk,
		mailer:          mailer,
		sessionDuration: normalizeSessionDuration(cfg.SessionDuration),
		logger:          logger,
	}
}

// normalizeSessionDuration clamps d into [MinSessionDuration, MaxSessionDuration].
// Zero selects DefaultSessionDuration.
func normalizeSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSessionDuration
	case d < MinSessionDuration:
		return MinSessionDuration
	case d > MaxSessionDuration:
		return MaxSessionDuration
	}
	return d
}

// =============================================================================
// Register Implementation
// =============================================================================

// Register creates a new user account.
//
// Email uniqueness is enforced by the database; a unique violation from
// CreateUser becomes ECONFLICT. The welcome email is queued best-effort.
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.repo.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
		LastResetDay: int32(s.clock.Today()),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	metrics.UserRegistered()
	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	if s.mailer != nil {
		if err := s.mailer.EnqueueWelcomeEmail(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("failed to queue welcome email", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// =============================================================================
// Session Implementation
// =============================================================================

// Login authenticates a user and creates a new session.
//
// The raw token is returned once; only its SHA-256 hash is stored.
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	repoUser, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Keep timing close to the wrong-password path.
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, invalidCredentials)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, invalidCredentials)
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	expiresAt := s.clock.Now().Add(s.sessionDuration)
	_, err = s.repo.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    repoUser.ID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID)

	return &domain.LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout deletes the session for token. Malformed or unknown tokens are
// not an error.
func (s *userService) Logout(ctx context.Context, token string) error {
	if len(token) != SessionTokenBytes*2 {
		return nil
	}

	if err := s.repo.DeleteSession(ctx, hashSessionToken(token)); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to delete session", "error", err)
	}

	s.logger.Debug("session invalidated")
	return nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// GetBySessionToken retrieves a user by their session token. The session
// query already filters expired rows.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if len(token) != SessionTokenBytes*2 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	session, err := s.repo.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	repoUser, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	if err := s.repo.DeleteExpiredSessions(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}

	s.logger.Info("expired sessions cleaned up")
	return nil
}

// =============================================================================
// Profile Implementation
// =============================================================================

// UpdateProfile updates a user's profile information.
func (s *userService) UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error {
	const op = "UserService.UpdateProfile"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return domain.Invalid(op, "Name is required")
	}

	if _, err := s.repo.GetUserByID(ctx, params.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := s.repo.UpdateUserProfile(ctx, repository.UpdateUserProfileParams{
		ID:   params.UserID,
		Name: params.Name,
	}); err != nil {
		return domain.Internal(err, op, "Failed to update profile")
	}

	s.logger.Info("user profile updated", "user_id", params.UserID)
	return nil
}

// ChangePassword changes a user's password and signs out every session.
func (s *userService) ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error {
	const op = "UserService.ChangePassword"

	if err := validatePassword(params.NewPassword); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	repoUser, err := s.repo.GetUserByID(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(params.CurrentPassword)); err != nil {
		return domain.Unauthorized(op, "Current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash new password")
	}

	if err := s.repo.UpdateUserPassword(ctx, repository.UpdateUserPasswordParams{
		ID:           params.UserID,
		PasswordHash: string(newHash),
	}); err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	if err := s.repo.DeleteUserSessions(ctx, params.UserID); err != nil {
		s.logger.Warn("failed to delete user sessions after password change", "user_id", params.UserID, "error", err)
	}

	s.logger.Info("user password changed", "user_id", params.UserID)
	return nil
}

// =============================================================================
// Billing Implementation
// =============================================================================

func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	if err := s.repo.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
		ID:               userID,
		StripeCustomerID: domain.ToNullString(stripeCustomerID),
	}); err != nil {
		return domain.Internal(err, op, "Failed to save billing customer")
	}
	return nil
}

func (s *userService) UpdateSubscription(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus, tier domain.SubscriptionTier, subscriptionID string) error {
	const op = "UserService.UpdateSubscription"

	if err := s.repo.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		ID:                 userID,
		SubscriptionStatus: string(status),
		SubscriptionTier:   string(tier),
		SubscriptionID:     domain.ToNullString(subscriptionID),
	}); err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}

	s.logger.Info("subscription updated",
		"user_id", userID,
		"status", status,
		"tier", tier,
		"premium", domain.IsPremium(tier, status),
	)
	return nil
}

func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	repoUser, err := s.repo.GetUserByStripeCustomerID(ctx, domain.ToNullString(stripeCustomerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "customer", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// generateSessionToken returns 32 random bytes as a 64-character hex string.
func generateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashSessionToken returns the SHA-256 of a session token. Tokens are
// high-entropy so a fast hash is enough.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:                 u.ID,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Name:               u.Name,
		StripeCustomerID:   domain.NullStringValue(u.StripeCustomerID),
		SubscriptionStatus: domain.SubscriptionStatus(u.SubscriptionStatus),
		SubscriptionTier:   domain.SubscriptionTier(u.SubscriptionTier),
		SubscriptionID:     domain.NullStringValue(u.SubscriptionID),
		AnalysesUsed:       int(u.AnalysesUsed),
		LastResetDay:       clock.Day(u.LastResetDay),
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// validateEmail validates an email address format.
//
// Checks:
// - exactly one @, not at either end
// - domain part contains a dot
// - RFC 5321 length limit of 254
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 bytes or less")
	}

	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domainPart, "@") {
		return domain.Invalid("", "Email must contain exactly one @ symbol")
	}
	if local == "" {
		return domain.Invalid("", "Email cannot start with @")
	}
	if domainPart == "" {
		return domain.Invalid("", "Email cannot end with @")
	}
	if !strings.Contains(domainPart, ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}

	return nil
}

// validatePassword validates password strength requirements.
//
// Rules:
// - 8 to 72 characters
// - at least one letter and one number
// - not a well-known password
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	// bcrypt reads at most 72 bytes, so the upper bound is in bytes.
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 bytes or less")
	}

	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		return domain.Invalid("", "Password must contain at least one letter")
	}
	if !hasNumber {
		return domain.Invalid("", "Password must contain at least one number")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return domain.Invalid("", "Password is too common")
	}

	return nil
}

var _ UserService = (*userService)(nil)
