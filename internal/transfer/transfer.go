// Package transfer implements the JSON import/export file format shared with
// the rest of the family of tools: either {"expenses": [...]} (or "incomes")
// or a bare array of items.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chitieu/internal/core"
)

var ErrBadFormat = errors.New("unrecognized import format")

// Report summarizes an import: how many items were inserted, how many were
// dropped by validation, and how many the file contained.
type Report struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// rawItem is the permissive wire shape of one imported record. Amount may be
// a JSON number or a numeric string.
type rawItem struct {
	Amount      any    `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// exportFile wraps records under the collection key, the format consumed by
// ParseImport and by sibling apps.
type exportFile struct {
	Expenses []core.Record `json:"expenses,omitempty"`
	Incomes  []core.Record `json:"incomes,omitempty"`
}

// Export serializes records under the kind's collection key.
func Export(kind core.Kind, records []core.Record) ([]byte, error) {
	var file exportFile
	switch kind {
	case core.KindExpense:
		file.Expenses = records
	case core.KindIncome:
		file.Incomes = records
	default:
		return nil, core.ErrInvalidKind
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ParseImport decodes an import file and validates every item. A structurally
// invalid file fails as a whole before anything is returned; individually
// invalid items are silently dropped and counted in the report. The drafts
// slice and the report's Success count always agree.
func ParseImport(kind core.Kind, data []byte) ([]core.Draft, Report, error) {
	items, err := decodeItems(kind, data)
	if err != nil {
		return nil, Report{}, err
	}

	report := Report{Total: len(items)}
	drafts := make([]core.Draft, 0, len(items))
	for _, item := range items {
		draft, ok := item.toDraft()
		if !ok {
			report.Failed++
			continue
		}
		drafts = append(drafts, draft)
		report.Success++
	}

	return drafts, report, nil
}

func decodeItems(kind core.Kind, data []byte) ([]rawItem, error) {
	// Bare array form.
	var items []rawItem
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	// Keyed form: the kind's collection key must be present.
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	key := string(kind) + "s"
	raw, ok := keyed[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", ErrBadFormat, key)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return items, nil
}

// toDraft validates one raw item. All four fields are required: a positive
// amount, non-blank category and description, and a parseable date.
func (it rawItem) toDraft() (core.Draft, bool) {
	amount, ok := coerceAmount(it.Amount)
	if !ok || amount <= 0 {
		return core.Draft{}, false
	}
	if strings.TrimSpace(it.Category) == "" || strings.TrimSpace(it.Description) == "" {
		return core.Draft{}, false
	}
	date, ok := parseDate(it.Date)
	if !ok {
		return core.Draft{}, false
	}

	return core.Draft{
		Amount:      amount,
		Category:    it.Category,
		Description: it.Description,
		Date:        date,
	}, true
}

func coerceAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
