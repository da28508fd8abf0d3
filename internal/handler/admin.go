package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/service"
	"github.com/google/uuid"
)

// AdminHandler serves the staff ticket queue.
//
// Routes handled:
//   - GET   /api/admin/tickets         -> Queue
//   - GET   /api/admin/tickets/counts  -> Counts
//   - PATCH /api/admin/tickets/{id}    -> UpdateStatus
type AdminHandler struct {
	tickets service.TicketService
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(tickets service.TicketService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		tickets: tickets,
		logger:  logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /api/admin/tickets", requireAdmin(http.HandlerFunc(h.Queue)))
	mux.Handle("GET /api/admin/tickets/counts", requireAdmin(http.HandlerFunc(h.Counts)))
	mux.Handle("PATCH /api/admin/tickets/{id}", requireAdmin(http.HandlerFunc(h.UpdateStatus)))
}

// Queue lists tickets urgent first, then oldest first. Without a status
// filter every ticket is listed.
func (h *AdminHandler) Queue(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.Queue"

	limit, offset, err := pageParams(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tickets, err := h.tickets.Queue(r.Context(), statusFilter(r), limit, offset)
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

// Counts returns unresolved tickets per priority.
func (h *AdminHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.tickets.OpenCounts(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"open": counts})
}

type updateTicketRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// UpdateStatus moves a ticket to a new status. Any valid status may follow
// any other.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UpdateStatus"

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundResponse(w, r, h.logger)
		return
	}

	var req updateTicketRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	ticket, err := h.tickets.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}
