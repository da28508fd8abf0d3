package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DukeRupert/chartwise/internal/domain"
)

// maxJSONBodySize bounds request bodies decoded as JSON.
const maxJSONBodySize = 1 << 20

// writeJSON writes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		default:
			return domain.Wrap(err, domain.EINVALID, op, "Request body is not valid JSON")
		}
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}
	return nil
}

// queryInt32 parses an optional non-negative integer query parameter.
func queryInt32(r *http.Request, op, name string) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(op, name, name+" must be a non-negative integer")
	}
	return int32(n), nil
}

// pageParams reads the optional limit and offset query parameters.
func pageParams(r *http.Request, op string) (int32, int32, error) {
	limit, err := queryInt32(r, op, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt32(r, op, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// Page is the envelope for list responses.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total,omitempty"`
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}
