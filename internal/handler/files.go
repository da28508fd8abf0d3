package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/storage"
)

// FilesHandler serves chart images out of local storage. A user can only
// read keys under their own charts/{userID}/ prefix; everything else,
// directories included, is a 404.
//
// Routes handled:
//   - GET /files/{key...} -> Serve
type FilesHandler struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(store storage.Storage, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers the file route behind requireUser.
func (h *FilesHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /files/{key...}", requireUser(http.HandlerFunc(h.Serve)))
}

// Serve streams one stored object to its owner.
func (h *FilesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	key := r.PathValue("key")
	if !storage.ChartOwnedBy(key, user.ID) {
		NotFoundResponse(w, r, h.logger)
		return
	}

	body, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("failed to stream file", "key", key, "error", err)
	}
}
