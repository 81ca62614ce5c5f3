package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dctlabs/dct-backend/api/apperr"
)

const maxRequestBodyBytes = 64 << 10 // 64 KiB

// decodeJSON reads a JSON request body into v, rejecting unknown sizes and
// malformed bodies with a validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError logs the full error server-side and returns the short
// user-facing message with the status mapped from the error kind.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	logFn := h.log.Warn
	if status >= http.StatusInternalServerError {
		logFn = h.log.Error
	}
	logFn("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)

	h.respondJSON(w, status, errorResponse{Error: apperr.Message(err)})
}
