package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chitieu/internal/core"
	"chitieu/internal/services"
	"chitieu/internal/storage"
	"chitieu/internal/transfer"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps known domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the details stay in the log.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, core.ErrInvalidKind):
		writeError(w, http.StatusNotFound, "unknown collection")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidDate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrEmptyCollection):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transfer.ErrBadFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
