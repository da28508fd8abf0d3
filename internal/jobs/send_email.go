package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"

	"github.com/DukeRupert/chartwise/internal/email"
	"github.com/DukeRupert/chartwise/internal/worker"
)

// SendEmailHandler delivers queued transactional email.
type SendEmailHandler struct {
	mailer email.EmailService
	logger *slog.Logger
}

// NewSendEmailHandler creates a new handler for email jobs.
func NewSendEmailHandler(mailer email.EmailService, logger *slog.Logger) *SendEmailHandler {
	return &SendEmailHandler{
		mailer: mailer,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *SendEmailHandler) Type() string {
	return worker.JobTypeSendEmail
}

// Handle sends one email. Malformed payloads and recipients the server
// rejects with a 5xx reply fail permanently; other transport errors are
// retried by the worker.
func (h *SendEmailHandler) Handle(ctx context.Context, payload []byte) error {
	return classifySendError(h.handle(ctx, payload))
}

func (h *SendEmailHandler) handle(ctx context.Context, payload []byte) error {
	var p worker.SendEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.To == "" {
		return worker.NewPermanentError(fmt.Errorf("email job has no recipient"))
	}

	h.logger.Debug("Sending email", "kind", p.Kind, "to", p.To)

	switch p.Kind {
	case worker.EmailKindWelcome:
		return h.mailer.SendWelcomeEmail(ctx, p.To, p.Name)
	case worker.EmailKindTicketConfirmation, worker.EmailKindTicketStatus:
		if p.Ticket == nil {
			return worker.NewPermanentError(fmt.Errorf("%s email without ticket", p.Kind))
		}
		if p.Kind == worker.EmailKindTicketConfirmation {
			return h.mailer.SendTicketConfirmation(ctx, p.To, *p.Ticket)
		}
		return h.mailer.SendTicketStatusUpdate(ctx, p.To, *p.Ticket)
	default:
		return worker.NewPermanentError(fmt.Errorf("unknown email kind %q", p.Kind))
	}
}

// classifySendError marks SMTP 5xx replies as permanent. A 4xx reply or a
// dial failure is worth retrying.
func classifySendError(err error) error {
	var reply *textproto.Error
	if errors.As(err, &reply) && reply.Code >= 500 && !worker.IsPermanent(err) {
		return worker.NewPermanentError(err)
	}
	return err
}

var _ worker.JobHandler = (*SendEmailHandler)(nil)
