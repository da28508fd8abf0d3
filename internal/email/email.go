// Package email provides transactional email for Chartwise.
//
// Mail is never sent inline from a request. Services enqueue a send_email
// job and the worker calls an EmailService.
package email

import (
	"context"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendWelcomeEmail greets a newly registered user.
	SendWelcomeEmail(ctx context.Context, to, name string) error

	// SendTicketConfirmation acknowledges a support ticket.
	SendTicketConfirmation(ctx context.Context, to string, ticket TicketSummary) error

	// SendTicketStatusUpdate tells the requester a ticket changed status.
	SendTicketStatusUpdate(ctx context.Context, to string, ticket TicketSummary) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// TicketSummary is the part of a support ticket shown in email.
type TicketSummary struct {
	Reference string `json:"reference"`
	Subject   string `json:"subject"`
	Reason    string `json:"reason"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "support@chartwise.app"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Chartwise"
)
