// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for authentication.
// These types are separate from the repository models so the database layer
// stays decoupled from business logic.
package domain

import (
	"database/sql"
	"time"

	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the Stripe subscription status of a user.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// SubscriptionTier is the plan a user is on.
type SubscriptionTier string

const (
	SubscriptionTierFree    SubscriptionTier = "free"
	SubscriptionTierPremium SubscriptionTier = "premium"
)

// IsPremium reports whether a tier/status pair grants unmetered analysis.
// Only the billing webhook changes either value.
func IsPremium(tier SubscriptionTier, status SubscriptionStatus) bool {
	if tier != SubscriptionTierPremium {
		return false
	}
	return status == SubscriptionStatusActive || status == SubscriptionStatusTrialing
}

// User is a registered account.
type User struct {
	ID                 uuid.UUID          `json:"id"`
	Email              string             `json:"email"`
	PasswordHash       string             `json:"-"`
	Name               string             `json:"name"`
	StripeCustomerID   string             `json:"-"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	SubscriptionTier   SubscriptionTier   `json:"subscription_tier"`
	SubscriptionID     string             `json:"-"`
	AnalysesUsed       int                `json:"-"`
	LastResetDay       clock.Day          `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsActive returns true if the user has an active subscription or is trialing.
func (u *User) IsActive() bool {
	return u.SubscriptionStatus == SubscriptionStatusActive ||
		u.SubscriptionStatus == SubscriptionStatusTrialing
}

// IsPremium returns true when the user is not metered.
func (u *User) IsPremium() bool {
	return IsPremium(u.SubscriptionTier, u.SubscriptionStatus)
}

// UsageAccount projects the usage columns of the user.
func (u *User) UsageAccount() UsageAccount {
	return UsageAccount{
		UserID:       u.ID,
		IsPremium:    u.IsPremium(),
		AnalysesUsed: u.AnalysesUsed,
		LastResetDay: u.LastResetDay,
	}
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Only the SHA-256 hash of the token is stored; the raw token is handed to
// the client once at login.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // raw, hashed by the service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User      *User
	Token     string // raw session token, only returned once
	ExpiresAt time.Time
}

// PasswordChangeParams contains parameters for changing a user's password.
type PasswordChangeParams struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
}

// ProfileUpdateParams contains parameters for updating a user's profile.
type ProfileUpdateParams struct {
	UserID uuid.UUID
	Name   string
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullUUID converts a uuid pointer to uuid.NullUUID.
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
