package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"chitieu/internal/aiparse"
)

type parseRequest struct {
	Input string `json:"input"`
}

// handleParse turns a free-text description into a structured transaction.
// When no AI provider is configured the keyword fallback answers instead, so
// the endpoint works without an API key, just with lower confidence.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request body: "+err.Error())
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		writeError(w, http.StatusUnprocessableEntity, "input is required")
		return
	}

	if s.parser == nil {
		writeJSON(w, http.StatusOK, aiparse.FallbackParse(kind, input, time.Now()))
		return
	}

	parsed, err := s.parser.ParseTransaction(r.Context(), kind, input)
	if errors.Is(err, aiparse.ErrNotConfigured) {
		writeJSON(w, http.StatusOK, aiparse.FallbackParse(kind, input, time.Now()))
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}
