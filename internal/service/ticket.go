package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/email"
	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// DefaultTicketPageSize is used when a list call passes no limit.
	DefaultTicketPageSize = 25

	// MaxTicketPageSize caps list calls.
	MaxTicketPageSize = 100

	maxTicketSubjectLength = 200
	maxTicketMessageLength = 10000
)

// =============================================================================
// Interface Definition
// =============================================================================

// TicketService handles support ticket intake and triage.
type TicketService interface {
	// Create validates and stores a ticket. Surrounding whitespace is trimmed
	// from every field before validation, so the stored reason and subject
	// are exactly what domain.ClassifyTicket sees. Priority is assigned here,
	// once, and never recomputed.
	Create(ctx context.Context, params domain.CreateTicketParams) (*domain.SupportTicket, error)

	// Get returns any ticket. For staff.
	Get(ctx context.Context, id uuid.UUID) (*domain.SupportTicket, error)

	// GetForUser returns a ticket only if userID filed it. Tickets belonging
	// to someone else read as not found.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.SupportTicket, error)

	// ListForUser returns a user's own tickets, newest first.
	ListForUser(ctx context.Context, params domain.TicketListParams) ([]domain.SupportTicket, error)

	// Queue returns tickets for staff, urgent first then oldest first.
	Queue(ctx context.Context, statuses []domain.TicketStatus, limit, offset int32) ([]domain.SupportTicket, error)

	// OpenCounts returns the number of unresolved tickets per priority.
	OpenCounts(ctx context.Context) (map[domain.TicketPriority]int64, error)

	// UpdateStatus moves a ticket to any valid status and notifies the
	// requester.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus) (*domain.SupportTicket, error)
}

// TicketRepository is the subset of repository.Queries the ticket service needs.
type TicketRepository interface {
	CreateSupportTicket(ctx context.Context, arg repository.CreateSupportTicketParams) (repository.SupportTicket, error)
	GetSupportTicketByID(ctx context.Context, id uuid.UUID) (repository.SupportTicket, error)
	ListSupportTicketsByUser(ctx context.Context, arg repository.ListSupportTicketsByUserParams) ([]repository.SupportTicket, error)
	ListSupportTicketQueue(ctx context.Context, arg repository.ListSupportTicketQueueParams) ([]repository.SupportTicket, error)
	CountOpenSupportTicketsByPriority(ctx context.Context) ([]repository.CountOpenSupportTicketsByPriorityRow, error)
	UpdateSupportTicketStatus(ctx context.Context, arg repository.UpdateSupportTicketStatusParams) (repository.SupportTicket, error)
}

var _ TicketRepository = (*repository.Queries)(nil)

// TicketMailer queues ticket notifications. worker.Mailer implements it.
type TicketMailer interface {
	EnqueueTicketConfirmation(ctx context.Context, to string, ticket email.TicketSummary) error
	EnqueueTicketStatusUpdate(ctx context.Context, to string, ticket email.TicketSummary) error
}

// =============================================================================
// Implementation
// =============================================================================

type ticketService struct {
	repo   TicketRepository
	mailer TicketMailer
	logger *slog.Logger
}

// NewTicketService creates a new TicketService. mailer may be nil.
func NewTicketService(repo TicketRepository, mailer TicketMailer, logger *slog.Logger) TicketService {
	return &ticketService{
		repo:   repo,
		mailer: mailer,
		logger: logger,
	}
}

func (s *ticketService) Create(ctx context.Context, params domain.CreateTicketParams) (*domain.SupportTicket, error) {
	const op = "TicketService.Create"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Reason = strings.TrimSpace(params.Reason)
	params.Subject = strings.TrimSpace(params.Subject)
	params.Message = strings.TrimSpace(params.Message)

	if err := params.Validate(op); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(params.Subject) > maxTicketSubjectLength {
		return nil, domain.NewValidationError(op, "subject", "Subject must be 200 characters or less")
	}
	if utf8.RuneCountInString(params.Message) > maxTicketMessageLength {
		return nil, domain.NewValidationError(op, "message", "Message must be 10000 characters or less")
	}

	priority := domain.ClassifyTicket(params.Reason, params.Subject)

	row, err := s.repo.CreateSupportTicket(ctx, repository.CreateSupportTicketParams{
		Reference: ulid.Make().String(),
		UserID:    domain.ToNullUUID(params.UserID),
		Email:     params.Email,
		Reason:    params.Reason,
		Subject:   params.Subject,
		Message:   params.Message,
		Status:    string(domain.TicketStatusOpen),
		Priority:  string(priority),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create support ticket")
	}

	ticket := repoTicketToDomain(row)

	metrics.TicketCreated(string(ticket.Priority))
	s.logger.Info("support ticket created",
		"ticket_id", ticket.ID,
		"reference", ticket.Reference,
		"priority", ticket.Priority,
		"anonymous", ticket.IsAnonymous(),
	)

	if s.mailer != nil {
		if err := s.mailer.EnqueueTicketConfirmation(ctx, ticket.Email, ticketSummary(ticket)); err != nil {
			s.logger.Warn("failed to queue ticket confirmation", "ticket_id", ticket.ID, "error", err)
		}
	}

	return ticket, nil
}

func (s *ticketService) Get(ctx context.Context, id uuid.UUID) (*domain.SupportTicket, error) {
	const op = "TicketService.Get"

	row, err := s.repo.GetSupportTicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "ticket", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve ticket")
	}

	return repoTicketToDomain(row), nil
}

func (s *ticketService) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.SupportTicket, error) {
	const op = "TicketService.GetForUser"

	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.UserID == nil || *ticket.UserID != userID {
		return nil, domain.NotFound(op, "ticket", id.String())
	}

	return ticket, nil
}

func (s *ticketService) ListForUser(ctx context.Context, params domain.TicketListParams) ([]domain.SupportTicket, error) {
	const op = "TicketService.ListForUser"

	statuses, err := statusStrings(op, params.Statuses)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListSupportTicketsByUser(ctx, repository.ListSupportTicketsByUserParams{
		UserID:   uuid.NullUUID{UUID: params.UserID, Valid: true},
		Statuses: statuses,
		Limit:    clampPageSize(params.Limit),
		Offset:   max(params.Offset, 0),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list tickets")
	}

	return repoTicketsToDomain(rows), nil
}

func (s *ticketService) Queue(ctx context.Context, statuses []domain.TicketStatus, limit, offset int32) ([]domain.SupportTicket, error) {
	const op = "TicketService.Queue"

	filter, err := statusStrings(op, statuses)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListSupportTicketQueue(ctx, repository.ListSupportTicketQueueParams{
		Statuses: filter,
		Limit:    clampPageSize(limit),
		Offset:   max(offset, 0),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load ticket queue")
	}

	return repoTicketsToDomain(rows), nil
}

func (s *ticketService) OpenCounts(ctx context.Context) (map[domain.TicketPriority]int64, error) {
	const op = "TicketService.OpenCounts"

	rows, err := s.repo.CountOpenSupportTicketsByPriority(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to count tickets")
	}

	counts := map[domain.TicketPriority]int64{
		domain.TicketPriorityUrgent: 0,
		domain.TicketPriorityHigh:   0,
		domain.TicketPriorityNormal: 0,
		domain.TicketPriorityLow:    0,
	}
	for _, r := range rows {
		counts[domain.TicketPriority(r.Priority)] = r.Count
	}
	return counts, nil
}

func (s *ticketService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus) (*domain.SupportTicket, error) {
	const op = "TicketService.UpdateStatus"

	if !status.IsValid() {
		return nil, domain.NewValidationError(op, "status", "Status must be open, in-progress or closed")
	}

	row, err := s.repo.UpdateSupportTicketStatus(ctx, repository.UpdateSupportTicketStatusParams{
		ID:     id,
		Status: string(status),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "ticket", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to update ticket")
	}

	ticket := repoTicketToDomain(row)
	s.logger.Info("support ticket status changed", "ticket_id", ticket.ID, "status", ticket.Status)

	if s.mailer != nil {
		if err := s.mailer.EnqueueTicketStatusUpdate(ctx, ticket.Email, ticketSummary(ticket)); err != nil {
			s.logger.Warn("failed to queue ticket status email", "ticket_id", ticket.ID, "error", err)
		}
	}

	return ticket, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

func statusStrings(op string, statuses []domain.TicketStatus) ([]string, error) {
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, domain.NewValidationError(op, "status", "Unknown status "+string(st))
		}
		out = append(out, string(st))
	}
	return out, nil
}

func clampPageSize(limit int32) int32 {
	if limit <= 0 {
		return DefaultTicketPageSize
	}
	return min(limit, MaxTicketPageSize)
}

func ticketSummary(t *domain.SupportTicket) email.TicketSummary {
	return email.TicketSummary{
		Reference: t.Reference,
		Subject:   t.Subject,
		Reason:    t.Reason,
		Priority:  string(t.Priority),
		Status:    string(t.Status),
	}
}

func repoTicketToDomain(t repository.SupportTicket) *domain.SupportTicket {
	var userID *uuid.UUID
	if t.UserID.Valid {
		id := t.UserID.UUID
		userID = &id
	}

	return &domain.SupportTicket{
		ID:        t.ID,
		Reference: t.Reference,
		UserID:    userID,
		Email:     t.Email,
		Reason:    t.Reason,
		Subject:   t.Subject,
		Message:   t.Message,
		Status:    domain.TicketStatus(t.Status),
		Priority:  domain.TicketPriority(t.Priority),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func repoTicketsToDomain(rows []repository.SupportTicket) []domain.SupportTicket {
	out := make([]domain.SupportTicket, 0, len(rows))
	for _, r := range rows {
		out = append(out, *repoTicketToDomain(r))
	}
	return out
}

var _ TicketService = (*ticketService)(nil)
