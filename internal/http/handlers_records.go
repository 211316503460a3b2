package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chitieu/internal/core"
)

const maxImportSize = 10 << 20 // 10 MiB

// recordPayload is the JSON body for create and update requests. Dates
// accept the YYYY-MM-DD form as well as full RFC 3339 timestamps.
type recordPayload struct {
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
}

func decodePayload(r *http.Request) (recordPayload, error) {
	var p recordPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return recordPayload{}, fmt.Errorf("decode request body: %w", err)
	}
	return p, nil
}

func parseDateValue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

func (p recordPayload) draft() (core.Draft, error) {
	var d core.Draft
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Date == nil {
		return core.Draft{}, core.ErrInvalidDate
	}
	date, err := parseDateValue(*p.Date)
	if err != nil {
		return core.Draft{}, err
	}
	d.Date = date
	return d, nil
}

func (p recordPayload) patch() (core.Patch, error) {
	patch := core.Patch{
		Amount:      p.Amount,
		Category:    p.Category,
		Description: p.Description,
	}
	if p.Date != nil {
		date, err := parseDateValue(*p.Date)
		if err != nil {
			return core.Patch{}, err
		}
		patch.Date = &date
	}
	return patch, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	runner, err := s.runner(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	page := parsePositiveInt(r, "page", 1)
	limit := parsePositiveInt(r, "limit", s.defaultPageSize)

	result, err := runner.Paginated(r.Context(), parseFilter(r), page, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	col, err := s.collection(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	limit := parsePositiveInt(r, "limit", s.defaultPageSize)
	records, err := col.GetRecent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Categories(kind))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	col, err := s.collection(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	rec, err := col.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	draft, err := payload.draft()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	rec, err := ledger.Create(r.Context(), draft)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := payload.patch()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	rec, err := ledger.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := ledger.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	deleted, err := ledger.DeleteAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	data, err := ledger.Export(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%ss-%s.json", ledger.Kind(), time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	report, err := ledger.Import(r.Context(), data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
