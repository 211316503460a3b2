package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chitieu/internal/core"

	_ "modernc.org/sqlite"
)

// Layout of persisted timestamps. Fixed width keeps lexicographic order equal
// to chronological order, which the created_at tie-break indexes rely on.
const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var ErrNotFound = errors.New("record not found")

// Store owns the SQLite database holding both record collections.
type Store struct {
	db       *sql.DB
	expenses *Collection
	incomes  *Collection
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db}
	s.expenses = &Collection{db: db, kind: core.KindExpense, table: "expenses"}
	s.incomes = &Collection{db: db, kind: core.KindIncome, table: "incomes"}

	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Expenses returns the expense collection handle.
func (s *Store) Expenses() *Collection {
	return s.expenses
}

// Incomes returns the income collection handle.
func (s *Store) Incomes() *Collection {
	return s.incomes
}

// Collection returns the handle for the given kind.
func (s *Store) Collection(kind core.Kind) (*Collection, error) {
	switch kind {
	case core.KindExpense:
		return s.expenses, nil
	case core.KindIncome:
		return s.incomes, nil
	default:
		return nil, core.ErrInvalidKind
	}
}
