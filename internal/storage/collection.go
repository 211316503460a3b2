package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chitieu/internal/core"

	"github.com/google/uuid"
)

// Collection is one of the two independent record collections. Both share the
// same schema and index layout; only the table differs. Expenses and incomes
// are separate ID namespaces, so the same ID value may exist in both without
// conflict.
type Collection struct {
	db    *sql.DB
	kind  core.Kind
	table string
}

// RangeOptions bounds an indexed range scan. The date interval is inclusive
// on both ends; a zero From or To leaves that end open. Category is ignored
// when empty. Limit <= 0 disables the LIMIT/OFFSET clause.
type RangeOptions struct {
	From     time.Time
	To       time.Time
	Category string
	Limit    int
	Offset   int
}

// Kind returns the collection's kind.
func (c *Collection) Kind() core.Kind {
	return c.kind
}

// Add inserts a new record, assigning ID and timestamps. CreatedAt equals
// UpdatedAt at insertion.
func (c *Collection) Add(ctx context.Context, d core.Draft) (core.Record, error) {
	now := time.Now().UTC()
	rec := core.Record{
		ID:          uuid.NewString(),
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, amount, category, description, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, c.table)
	_, err := c.db.ExecContext(ctx, query,
		rec.ID, rec.Amount, rec.Category, rec.Description,
		rec.Date.Format(dateLayout), now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return core.Record{}, fmt.Errorf("insert %s record: %w", c.kind, err)
	}

	slog.InfoContext(ctx, "Record saved",
		"kind", c.kind,
		"id", rec.ID,
		"category", rec.Category,
		"amount", rec.Amount)

	return rec, nil
}

// Update applies a partial update to one record. ID and created_at are
// immutable; updated_at is refreshed. Missing IDs report ErrNotFound.
func (c *Collection) Update(ctx context.Context, id string, p core.Patch) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if p.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *p.Amount)
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, p.Date.Format(dateLayout))
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(timeLayout))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", c.table, strings.Join(sets, ", "))
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s record: %w", c.kind, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s record rows affected: %w", c.kind, err)
	}
	if affected == 0 {
		return fmt.Errorf("update %s record %s: %w", c.kind, id, ErrNotFound)
	}

	return nil
}

// Delete removes exactly one record. A hard delete, no tombstone.
func (c *Collection) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table)
	res, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s record: %w", c.kind, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s record rows affected: %w", c.kind, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s record %s: %w", c.kind, id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Record deleted", "kind", c.kind, "id", id)
	return nil
}

// DeleteAll clears the whole collection and reports how many records went.
func (c *Collection) DeleteAll(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c.table))
	if err != nil {
		return 0, fmt.Errorf("delete all %s records: %w", c.kind, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all %s rows affected: %w", c.kind, err)
	}

	slog.InfoContext(ctx, "Collection cleared", "kind", c.kind, "count", affected)
	return affected, nil
}

// GetByID fetches a single record. Missing IDs report ErrNotFound.
func (c *Collection) GetByID(ctx context.Context, id string) (core.Record, error) {
	query := fmt.Sprintf(`SELECT id, amount, category, description, date, created_at, updated_at
		FROM %s WHERE id = ?`, c.table)
	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("get %s record %s: %w", c.kind, id, ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get %s record: %w", c.kind, err)
	}
	return rec, nil
}

// GetAll returns the full collection, newest transaction date first.
func (c *Collection) GetAll(ctx context.Context) ([]core.Record, error) {
	query := fmt.Sprintf(`SELECT id, amount, category, description, date, created_at, updated_at
		FROM %s ORDER BY date DESC, created_at DESC`, c.table)
	return c.queryRecords(ctx, query)
}

// GetRecent returns the limit most recently created records.
func (c *Collection) GetRecent(ctx context.Context, limit int) ([]core.Record, error) {
	query := fmt.Sprintf(`SELECT id, amount, category, description, date, created_at, updated_at
		FROM %s ORDER BY created_at DESC LIMIT ?`, c.table)
	return c.queryRecords(ctx, query, limit)
}

// Count returns the collection size.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s records: %w", c.kind, err)
	}
	return n, nil
}

// BulkAdd inserts a batch of records in a single transaction, all or nothing.
// Every record in the batch shares the same created_at/updated_at timestamp.
func (c *Collection) BulkAdd(ctx context.Context, drafts []core.Draft) ([]core.Record, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(id, amount, category, description, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, c.table))
	if err != nil {
		return nil, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	ts := now.Format(timeLayout)
	records := make([]core.Record, 0, len(drafts))
	for _, d := range drafts {
		rec := core.Record{
			ID:          uuid.NewString(),
			Amount:      d.Amount,
			Category:    d.Category,
			Description: d.Description,
			Date:        d.Date,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Amount, rec.Category, rec.Description,
			rec.Date.Format(dateLayout), ts, ts); err != nil {
			return nil, fmt.Errorf("bulk insert %s record: %w", c.kind, err)
		}
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk insert: %w", err)
	}

	slog.InfoContext(ctx, "Bulk insert committed", "kind", c.kind, "count", len(records))
	return records, nil
}

// Range runs the indexed date range scan, optionally narrowed to one category
// and windowed with LIMIT/OFFSET. Results come back date desc, created_at
// desc, matching the compound index order reversed.
func (c *Collection) Range(ctx context.Context, opts RangeOptions) ([]core.Record, error) {
	query, args := c.rangeClause(
		`SELECT id, amount, category, description, date, created_at, updated_at FROM `, opts)
	query += " ORDER BY date DESC, created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}
	return c.queryRecords(ctx, query, args...)
}

// CountRange counts the records the equivalent Range call would visit,
// without materializing them.
func (c *Collection) CountRange(ctx context.Context, opts RangeOptions) (int, error) {
	query, args := c.rangeClause("SELECT COUNT(*) FROM ", opts)
	var n int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s range: %w", c.kind, err)
	}
	return n, nil
}

func (c *Collection) rangeClause(prefix string, opts RangeOptions) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !opts.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, opts.From.Format(dateLayout))
	}
	if !opts.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, opts.To.Format(dateLayout))
	}
	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}

	query := prefix + c.table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query, args
}

func (c *Collection) queryRecords(ctx context.Context, query string, args ...any) ([]core.Record, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", c.kind, err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s record: %w", c.kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", c.kind, err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var (
		rec                         core.Record
		date, createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Amount, &rec.Category, &rec.Description,
		&date, &createdAt, &updatedAt); err != nil {
		return core.Record{}, err
	}

	var err error
	if rec.Date, err = time.ParseInLocation(dateLayout, date, time.Local); err != nil {
		return core.Record{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.Record{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return core.Record{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}

	return rec, nil
}
