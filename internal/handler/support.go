package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/service"
	"github.com/google/uuid"
)

// SupportHandler handles customer-facing support ticket requests.
//
// Routes handled:
//   - POST /api/support/tickets       -> Create (anonymous allowed)
//   - GET  /api/support/tickets       -> List
//   - GET  /api/support/tickets/{id}  -> Get (owner or admin)
type SupportHandler struct {
	tickets service.TicketService
	admins  auth.Admins
	logger  *slog.Logger
}

// NewSupportHandler creates a new SupportHandler.
func NewSupportHandler(tickets service.TicketService, admins auth.Admins, logger *slog.Logger) *SupportHandler {
	return &SupportHandler{
		tickets: tickets,
		admins:  admins,
		logger:  logger,
	}
}

// RegisterRoutes registers support routes. Ticket intake only loads the
// user when a session is present; the rest require one.
func (h *SupportHandler) RegisterRoutes(
	mux *http.ServeMux,
	withUser func(http.Handler) http.Handler,
	requireUser func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	mux.Handle("POST /api/support/tickets", limit(withUser(http.HandlerFunc(h.Create))))
	mux.Handle("GET /api/support/tickets", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/support/tickets/{id}", requireUser(http.HandlerFunc(h.Get)))
}

type createTicketRequest struct {
	Email   string `json:"email"`
	Reason  string `json:"reason"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Create files a ticket. Signed-in users are attached to it and default to
// their account email.
func (h *SupportHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "SupportHandler.Create"

	var req createTicketRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params := domain.CreateTicketParams{
		Email:   req.Email,
		Reason:  req.Reason,
		Subject: req.Subject,
		Message: req.Message,
	}
	if user := auth.GetUser(r.Context()); user != nil {
		params.UserID = &user.ID
		if strings.TrimSpace(params.Email) == "" {
			params.Email = user.Email
		}
	}

	ticket, err := h.tickets.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ticket": ticket})
}

// List returns the user's own tickets. An optional comma-separated status
// query parameter filters them.
func (h *SupportHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "SupportHandler.List"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, offset, err := pageParams(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tickets, err := h.tickets.ListForUser(r.Context(), domain.TicketListParams{
		UserID:   user.ID,
		Statuses: statusFilter(r),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Page[domain.SupportTicket]{
		Items:  tickets,
		Limit:  limit,
		Offset: offset,
	})
}

// Get returns a ticket to its owner or to staff.
func (h *SupportHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundResponse(w, r, h.logger)
		return
	}

	var ticket *domain.SupportTicket
	if h.admins.IsAdmin(user) {
		ticket, err = h.tickets.Get(r.Context(), id)
	} else {
		ticket, err = h.tickets.GetForUser(r.Context(), id, user.ID)
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}

// statusFilter reads ?status=open,in-progress. Values are validated by the
// service.
func statusFilter(r *http.Request) []domain.TicketStatus {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil
	}
	var out []domain.TicketStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, domain.TicketStatus(s))
		}
	}
	return out
}
