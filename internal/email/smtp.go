package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"mime/quotedprintable"
	"net/smtp"
	"strings"
	"time"

	"github.com/DukeRupert/chartwise/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// sendFunc matches smtp.SendMail so tests can capture messages.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with Mailhog in development and any standard
// SMTP relay in production. Templates are embedded in the binary.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
	sendMail  sendFunc
}

// NewSMTPEmailService creates a new SMTP-based email service.
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(emailTemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
		sendMail:  smtp.SendMail,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendWelcomeEmail greets a newly registered user.
func (s *SMTPEmailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	data := map[string]any{
		"Name":         name,
		"AppURL":       s.baseURL,
		"FreeAnalyses": domain.FreeDailyAnalyses,
	}

	htmlBody, err := s.renderTemplate("welcome.html", data)
	if err != nil {
		return fmt.Errorf("failed to render welcome email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Welcome to Chartwise. Your free plan includes %d chart analyses every day.

Analyze your first chart: %s

Need more? Premium removes the daily limit.

The Chartwise Team
`, name, domain.FreeDailyAnalyses, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Welcome to Chartwise",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendTicketConfirmation acknowledges a support ticket.
func (s *SMTPEmailService) SendTicketConfirmation(ctx context.Context, to string, ticket TicketSummary) error {
	htmlBody, err := s.renderTemplate("ticket_confirmation.html", ticket)
	if err != nil {
		return fmt.Errorf("failed to render ticket confirmation template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi,

We received your support request %s.

Subject:  %s
Reason:   %s
Priority: %s

Reply to this email if you have anything to add. Please keep the reference in the subject line.

The Chartwise Team
`, ticket.Reference, ticket.Subject, ticket.Reason, ticket.Priority)

	return s.send(ctx, Email{
		To:       to,
		Subject:  fmt.Sprintf("[%s] We received your request", ticket.Reference),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendTicketStatusUpdate tells the requester a ticket changed status.
func (s *SMTPEmailService) SendTicketStatusUpdate(ctx context.Context, to string, ticket TicketSummary) error {
	htmlBody, err := s.renderTemplate("ticket_status.html", ticket)
	if err != nil {
		return fmt.Errorf("failed to render ticket status template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi,

Your support request %s is now %s.

The Chartwise Team
`, ticket.Reference, ticket.Status)

	return s.send(ctx, Email{
		To:       to,
		Subject:  fmt.Sprintf("[%s] Status changed to %s", ticket.Reference, ticket.Status),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Mailhog needs no credentials
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

const boundary = "===============CHARTWISE_BOUNDARY==============="

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", email.TextBody},
		{"text/html; charset=utf-8", email.HTMLBody},
	}
	for _, p := range parts {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", p.contentType)
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Template Functions
// =============================================================================

// emailTemplateFuncs returns template functions available in email templates.
func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

var _ EmailService = (*SMTPEmailService)(nil)
