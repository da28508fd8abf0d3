// Package domain contains core business types and interfaces.
//
// This file defines support tickets and the priority ladder applied to them
// at intake.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// Ticket Status
// =============================================================================

// TicketStatus represents the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// String returns the string representation of the status.
func (s TicketStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
//
// Any valid status may follow any other; the intended flow is
// open -> in-progress -> closed but nothing enforces it.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// =============================================================================
// Ticket Priority
// =============================================================================

// TicketPriority is assigned once at intake and never recomputed.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// String returns the string representation of the priority.
func (p TicketPriority) String() string {
	return string(p)
}

// Reasons offered by the support form. Reasons are free text on the wire;
// only these exact values affect priority.
const (
	TicketReasonTechnicalIssue = "Technical Issue"
	TicketReasonAccountProblem = "Account Problem"
	TicketReasonFeatureRequest = "Feature Request"
	TicketReasonBilling        = "Billing Question"
	TicketReasonUrgent         = "Urgent Issue"
	TicketReasonOther          = "Other"
)

var subjectFolder = cases.Lower(language.Und)

// ClassifyTicket maps the reason and subject of a new ticket to a priority.
// The first matching rule wins; unmatched input is normal. Reasons are
// compared exactly; callers trim form input first.
func ClassifyTicket(reason, subject string) TicketPriority {
	// The reason marker is matched case-sensitively, the subject is not.
	if strings.Contains(reason, "Urgent") ||
		strings.Contains(subjectFolder.String(subject), "urgent") {
		return TicketPriorityUrgent
	}

	switch reason {
	case TicketReasonTechnicalIssue, TicketReasonAccountProblem:
		return TicketPriorityHigh
	case TicketReasonFeatureRequest:
		return TicketPriorityLow
	}

	return TicketPriorityNormal
}

// =============================================================================
// Support Ticket Domain Type
// =============================================================================

// SupportTicket is a customer support request.
type SupportTicket struct {
	ID        uuid.UUID      `json:"id"`
	Reference string         `json:"reference"` // ULID shown to the customer
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Email     string         `json:"email"`
	Reason    string         `json:"reason"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Status    TicketStatus   `json:"status"`
	Priority  TicketPriority `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsAnonymous returns true if the ticket was filed without an account.
func (t *SupportTicket) IsAnonymous() bool {
	return t.UserID == nil
}

// CreateTicketParams contains the parameters for filing a ticket.
type CreateTicketParams struct {
	UserID  *uuid.UUID
	Email   string
	Reason  string
	Subject string
	Message string
}

// Validate checks required fields and returns a ValidationError listing
// every missing one.
func (p CreateTicketParams) Validate(op string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = NewValidationError(op, field, msg)
			return
		}
		ve = AddFieldError(ve, field, msg)
	}

	email := strings.TrimSpace(p.Email)
	if email == "" {
		add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		add("email", "Email is not valid")
	}
	if strings.TrimSpace(p.Reason) == "" {
		add("reason", "Reason is required")
	}
	if strings.TrimSpace(p.Subject) == "" {
		add("subject", "Subject is required")
	}
	if strings.TrimSpace(p.Message) == "" {
		add("message", "Message is required")
	}

	if ve != nil {
		return ve
	}
	return nil
}

// TicketListParams filters a user's tickets.
type TicketListParams struct {
	UserID   uuid.UUID
	Statuses []TicketStatus // empty means all
	Limit    int32
	Offset   int32
}
