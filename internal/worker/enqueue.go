package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/email"
	"github.com/DukeRupert/chartwise/internal/repository"
)

// JobTypeSendEmail is the only job type; jobs.SendEmailHandler runs it.
const JobTypeSendEmail = "send_email"

// Email kinds carried in SendEmailPayload.Kind
const (
	EmailKindWelcome            = "welcome"
	EmailKindTicketConfirmation = "ticket_confirmation"
	EmailKindTicketStatus       = "ticket_status"
)

// SendEmailPayload is the payload for email delivery jobs.
type SendEmailPayload struct {
	Kind   string               `json:"kind"`
	To     string               `json:"to"`
	Name   string               `json:"name,omitempty"`
	Ticket *email.TicketSummary `json:"ticket,omitempty"`
}

// Queue is the part of repository.Queries used to enqueue jobs.
type Queue interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

var _ Queue = (*repository.Queries)(nil)

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority Priority) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = int32(priority)
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queue Queue,
	jobType string,
	payload any,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    int32(PriorityNormal),
		MaxAttempts: 5,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queue.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// Mailer enqueues email jobs on behalf of services.
type Mailer struct {
	queue Queue
}

// NewMailer creates a Mailer backed by the jobs table.
func NewMailer(queue Queue) *Mailer {
	return &Mailer{queue: queue}
}

// EnqueueWelcomeEmail queues the welcome message for a new account.
func (m *Mailer) EnqueueWelcomeEmail(ctx context.Context, to, name string) error {
	_, err := EnqueueJob(ctx, m.queue, JobTypeSendEmail, SendEmailPayload{
		Kind: EmailKindWelcome,
		To:   to,
		Name: name,
	}, WithPriority(PriorityLow))
	return err
}

// EnqueueTicketConfirmation queues the acknowledgement for a new ticket at
// the ticket's own priority.
func (m *Mailer) EnqueueTicketConfirmation(ctx context.Context, to string, ticket email.TicketSummary) error {
	priority := TicketEmailPriority(domain.TicketPriority(ticket.Priority))
	_, err := EnqueueJob(ctx, m.queue, JobTypeSendEmail, SendEmailPayload{
		Kind:   EmailKindTicketConfirmation,
		To:     to,
		Ticket: &ticket,
	}, WithPriority(priority))
	return err
}

// EnqueueTicketStatusUpdate queues a status change notice.
func (m *Mailer) EnqueueTicketStatusUpdate(ctx context.Context, to string, ticket email.TicketSummary) error {
	_, err := EnqueueJob(ctx, m.queue, JobTypeSendEmail, SendEmailPayload{
		Kind:   EmailKindTicketStatus,
		To:     to,
		Ticket: &ticket,
	}, WithPriority(TicketEmailPriority(domain.TicketPriority(ticket.Priority))))
	return err
}
