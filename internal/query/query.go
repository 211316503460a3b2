// Package query translates filter specifications into indexed range scans
// over a record collection, with an in-memory fallback for the one predicate
// the indexes cannot express: substring search on description.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chitieu/internal/core"
	"chitieu/internal/storage"
)

// CategoryAll is the sentinel meaning "no category filter". An absent
// category behaves the same way.
const CategoryAll = "all"

// Filter bounds a query. The date interval is inclusive on both ends.
type Filter struct {
	Category string
	DateFrom time.Time
	DateTo   time.Time
	Search   string
}

// Page is one window of a paginated result set. Total counts every match,
// not just the window.
type Page struct {
	Items []core.Record `json:"items"`
	Total int           `json:"total"`
}

// Runner executes filtered queries against one collection. It is pull-based:
// callers re-run queries after writes, it never pushes updates.
type Runner struct {
	col *storage.Collection
}

func New(col *storage.Collection) *Runner {
	return &Runner{col: col}
}

// categoryFilter returns the active category, or "" when the filter is
// absent or the "all" sentinel.
func (f Filter) categoryFilter() string {
	if f.Category == "" || f.Category == CategoryAll {
		return ""
	}
	return f.Category
}

func (f Filter) rangeOptions() storage.RangeOptions {
	return storage.RangeOptions{
		From:     f.DateFrom,
		To:       f.DateTo,
		Category: f.categoryFilter(),
	}
}

// All returns every matching record, newest transaction date first, ties
// broken by newest created. An empty match is an empty slice, not an error.
func (r *Runner) All(ctx context.Context, f Filter) ([]core.Record, error) {
	records, err := r.col.Range(ctx, f.rangeOptions())
	if err != nil {
		return nil, fmt.Errorf("range scan: %w", err)
	}

	if f.Search != "" {
		records = filterBySearch(records, f.Search)
	}
	if records == nil {
		records = []core.Record{}
	}

	return records, nil
}

// Paginated returns the window for a 1-based page plus the total match
// count. Concatenating every page reproduces All exactly. Callers must pass
// positive page and limit; that contract is not re-validated here.
//
// Without search text, pagination is pushed into the storage engine so the
// full result set is never materialized. With search text the substring
// filter forces a full fetch first; the window is sliced afterwards so
// the total reflects the filtered count.
func (r *Runner) Paginated(ctx context.Context, f Filter, page, limit int) (Page, error) {
	offset := (page - 1) * limit

	if f.Search != "" {
		matches, err := r.All(ctx, f)
		if err != nil {
			return Page{}, err
		}
		return Page{Items: sliceWindow(matches, offset, limit), Total: len(matches)}, nil
	}

	opts := f.rangeOptions()
	total, err := r.col.CountRange(ctx, opts)
	if err != nil {
		return Page{}, fmt.Errorf("count range: %w", err)
	}

	opts.Limit = limit
	opts.Offset = offset
	items, err := r.col.Range(ctx, opts)
	if err != nil {
		return Page{}, fmt.Errorf("range scan: %w", err)
	}
	if items == nil {
		items = []core.Record{}
	}

	return Page{Items: items, Total: total}, nil
}

// filterBySearch keeps records whose description contains the search text,
// case-insensitively. Always returns a fresh slice; the input may be shared
// with a caching layer and must not be mutated.
func filterBySearch(records []core.Record, search string) []core.Record {
	needle := strings.ToLower(search)
	matches := make([]core.Record, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Description), needle) {
			matches = append(matches, rec)
		}
	}
	return matches
}

func sliceWindow(records []core.Record, offset, limit int) []core.Record {
	if offset >= len(records) {
		return []core.Record{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}
