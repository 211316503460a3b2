package http

import (
	"fmt"
	"net/http"
	"strings"

	"chitieu/internal/core"
	"chitieu/internal/query"
)

// kindFromQuery reads the "kind" query parameter, defaulting to expenses.
func kindFromQuery(r *http.Request) (core.Kind, error) {
	v := strings.TrimSpace(r.URL.Query().Get("kind"))
	if v == "" {
		return core.KindExpense, nil
	}
	return core.ParseKind(v)
}

const (
	defaultTrendMonths = 6
	maxTrendMonths     = 60
)

func statsCacheKey(f query.Filter, extra string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		f.Category,
		f.DateFrom.Format("2006-01-02"),
		f.DateTo.Format("2006-01-02"),
		f.Search,
		extra)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	key := statsCacheKey(f, "")

	if stats, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.analytics.Summary(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.summaryCache.Set(key, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	f := parseFilter(r)
	key := statsCacheKey(f, kind.String())

	if stats, ok := s.categoryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.analytics.Categories(r.Context(), kind, f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.categoryCache.Set(key, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	months := parsePositiveInt(r, "months", defaultTrendMonths)
	if months > maxTrendMonths {
		months = maxTrendMonths
	}
	key := fmt.Sprintf("trends|%d", months)

	if stats, ok := s.trendsCache.Get(key); ok {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.analytics.Trends(r.Context(), months)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.trendsCache.Set(key, stats)
	writeJSON(w, http.StatusOK, stats)
}
