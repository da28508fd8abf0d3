package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/service"
	"github.com/google/uuid"
)

// multipartOverhead is allowed on top of the chart itself for form fields
// and part headers.
const multipartOverhead = 1 << 20

// AnalysisHandler serves the metered chart analysis endpoints and the
// read-only usage endpoint.
//
// Routes handled:
//   - GET  /api/usage           -> Usage
//   - POST /api/analyses        -> Analyze
//   - GET  /api/analyses        -> List
//   - GET  /api/analyses/{id}   -> Get
type AnalysisHandler struct {
	analyses service.AnalysisService
	usage    service.UsageService
	logger   *slog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analyses service.AnalysisService, usage service.UsageService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyses: analyses,
		usage:    usage,
		logger:   logger,
	}
}

// RegisterRoutes registers analysis routes. Every route requires a user.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Usage)))
	mux.Handle("POST /api/analyses", requireUser(http.HandlerFunc(h.Analyze)))
	mux.Handle("GET /api/analyses", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/analyses/{id}", requireUser(http.HandlerFunc(h.Get)))
}

// usageResponse is today's entitlement and the day the counter next resets.
type usageResponse struct {
	domain.Entitlement
	Day      string `json:"day"`
	ResetsOn string `json:"resets_on"`
}

// Usage reports today's allowance without consuming any of it.
func (h *AnalysisHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	ent, err := h.usage.Entitle(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usageResponse{
		Entitlement: ent,
		Day:         ent.Day.String(),
		ResetsOn:    ent.Day.AddDays(1).String(),
	})
}

// Analyze accepts a multipart upload with a "chart" file and optional
// symbol, timeframe and notes fields.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	const op = "AnalysisHandler.Analyze"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxChartSize+multipartOverhead)
	if err := r.ParseMultipartForm(domain.MaxChartSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Chart images must be %d MB or smaller", domain.MaxChartSize>>20))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "Expected a multipart form upload"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("chart")
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError(op, "chart", "A chart image is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, domain.MaxChartSize+1))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "Failed to read chart upload"))
		return
	}

	outcome, err := h.analyses.Analyze(r.Context(), domain.AnalyzeChartParams{
		UserID:      user.ID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Symbol:      r.FormValue("symbol"),
		Timeframe:   r.FormValue("timeframe"),
		Notes:       r.FormValue("notes"),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, outcome)
}

// List returns the user's analyses, newest first.
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "AnalysisHandler.List"

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

	items, total, err := h.analyses.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, Page[domain.ChartAnalysis]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get returns one of the user's analyses.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	analysis, err := h.analyses.Get(r.Context(), user.ID, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"analysis": analysis})
}
