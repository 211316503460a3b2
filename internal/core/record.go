package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

type (
	// Kind names one of the two record collections. Expenses and incomes are
	// structurally identical and never cross-reference each other.
	Kind string

	// Record is a single financial transaction. ID, CreatedAt and UpdatedAt
	// are assigned by storage; Date is the user-meaningful transaction date
	// and may be backdated relative to CreatedAt.
	Record struct {
		ID          string    `json:"id"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Date        time.Time `json:"date"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Draft holds the user-facing fields of a record before insertion.
	Draft struct {
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Date        time.Time `json:"date"`
	}

	// Patch is a partial update. Nil fields are left untouched; ID and
	// CreatedAt can never be changed.
	Patch struct {
		Amount      *float64   `json:"amount,omitempty"`
		Category    *string    `json:"category,omitempty"`
		Description *string    `json:"description,omitempty"`
		Date        *time.Time `json:"date,omitempty"`
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidKind      = errors.New("invalid record kind")
)

// IsValid returns true if the kind names a known collection.
func (k Kind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

func (d Draft) Validate() error {
	if d.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if d.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (p Patch) Validate() error {
	if p.Amount != nil && *p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return ErrEmptyDescription
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty returns true when the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil && p.Date == nil
}

// Apply returns a copy of r with the patch fields applied. UpdatedAt is left
// to the storage layer.
func (p Patch) Apply(r Record) Record {
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	return r
}

// SameDay reports whether two dates fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonth reports whether two dates fall in the same local calendar month.
func SameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}
