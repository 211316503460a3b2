// Package aiparse turns free-text Vietnamese transaction descriptions into
// structured drafts. The primary path asks a Gemini model; when the model is
// unavailable or returns garbage, a keyword heuristic takes over with a low
// confidence score.
package aiparse

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"chitieu/internal/core"
)

var (
	ErrNotConfigured = errors.New("ai provider not configured")
	ErrEmptyInput    = errors.New("empty input")
)

// ParsedTransaction is the model's structured reading of one input line.
// Confidence is the model's self-assessment clamped to [0, 1]; the fallback
// path always reports 0.3.
type ParsedTransaction struct {
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Confidence  float64   `json:"confidence"`
	Suggestions []string  `json:"suggestions"`
}

// Parser extracts a transaction from natural language input for one kind.
type Parser interface {
	ParseTransaction(ctx context.Context, kind core.Kind, input string) (ParsedTransaction, error)
}

// Draft converts the parsed transaction into an insertable draft.
func (p ParsedTransaction) Draft() core.Draft {
	return core.Draft{
		Amount:      p.Amount,
		Category:    p.Category,
		Description: p.Description,
		Date:        p.Date,
	}
}

var amountPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(tr|k)?\b`)

// FallbackParse applies the keyword heuristic: first number in the input
// (with "k" and "tr" shorthand for thousands and millions), first keyword
// match for the category, and relative-day words for the date.
func FallbackParse(kind core.Kind, input string, now time.Time) ParsedTransaction {
	amount := extractAmount(input)
	lower := strings.ToLower(input)

	category := core.FallbackCategory(kind)
	for _, name := range core.Categories(kind) {
		if matchesKeywords(lower, core.CategoryKeywords[name]) {
			category = name
			break
		}
	}

	date := now
	switch {
	case strings.Contains(lower, "hôm kia"):
		date = now.AddDate(0, 0, -2)
	case strings.Contains(lower, "hôm qua"):
		date = now.AddDate(0, 0, -1)
	}

	description := input
	if loc := amountPattern.FindStringIndex(input); loc != nil {
		description = strings.TrimSpace(input[:loc[0]] + input[loc[1]:])
	}
	if description == "" {
		description = input
	}

	return ParsedTransaction{
		Amount:      amount,
		Category:    category,
		Description: capitalizeFirst(description),
		Date:        date,
		Confidence:  0.3,
		Suggestions: []string{"Đã phân tích với phương pháp dự phòng"},
	}
}

func matchesKeywords(lowerInput string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerInput, kw) {
			return true
		}
	}
	return false
}

// extractAmount reads the first number in the input. "100k" means 100000 and
// "1tr" means 1000000, the common Vietnamese shorthands.
func extractAmount(input string) float64 {
	m := amountPattern.FindStringSubmatch(input)
	if m == nil {
		return 0
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}

	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1_000
	case "tr":
		n *= 1_000_000
	}
	return n
}

func capitalizeFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
