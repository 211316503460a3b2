package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"chitieu/internal/query"
)

// parseFilter reads the shared query parameters: category, from, to (both
// inclusive, YYYY-MM-DD) and search. Malformed dates are ignored rather than
// rejected, matching the lenient parameter handling elsewhere.
func parseFilter(r *http.Request) query.Filter {
	q := r.URL.Query()

	f := query.Filter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if d, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
			f.DateFrom = d
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if d, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
			f.DateTo = d
		}
	}

	return f
}

// parsePositiveInt reads a positive integer query parameter, falling back to
// def when absent or invalid.
func parsePositiveInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
