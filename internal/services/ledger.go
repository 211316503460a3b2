package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chitieu/internal/core"
	"chitieu/internal/notify"
	"chitieu/internal/storage"
	"chitieu/internal/transfer"
)

// ErrEmptyCollection signals a delete-all or export against a collection
// with no records, which usually means the user picked the wrong action.
var ErrEmptyCollection = errors.New("collection is empty")

// Ledger orchestrates mutations of one collection: validate, write to
// storage, then publish a change event. Event publishing is best effort; the
// write has already committed and a broken notifier must not fail it.
type Ledger struct {
	col      *storage.Collection
	notifier notify.Notifier
}

func NewLedger(col *storage.Collection, notifier notify.Notifier) *Ledger {
	return &Ledger{col: col, notifier: notifier}
}

// Kind returns the collection kind this ledger manages.
func (l *Ledger) Kind() core.Kind {
	return l.col.Kind()
}

// Create validates and inserts a new record.
func (l *Ledger) Create(ctx context.Context, d core.Draft) (core.Record, error) {
	if err := d.Validate(); err != nil {
		return core.Record{}, fmt.Errorf("validate %s: %w", l.Kind(), err)
	}

	rec, err := l.col.Add(ctx, d)
	if err != nil {
		return core.Record{}, fmt.Errorf("create %s: %w", l.Kind(), err)
	}

	l.publish(ctx, notify.ActionCreated, rec.ID)
	return rec, nil
}

// Update applies a partial update and returns the refreshed record.
func (l *Ledger) Update(ctx context.Context, id string, p core.Patch) (core.Record, error) {
	if err := p.Validate(); err != nil {
		return core.Record{}, fmt.Errorf("validate %s patch: %w", l.Kind(), err)
	}

	if err := l.col.Update(ctx, id, p); err != nil {
		return core.Record{}, err
	}

	rec, err := l.col.GetByID(ctx, id)
	if err != nil {
		return core.Record{}, err
	}

	l.publish(ctx, notify.ActionUpdated, id)
	return rec, nil
}

// Delete removes one record.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if err := l.col.Delete(ctx, id); err != nil {
		return err
	}

	l.publish(ctx, notify.ActionDeleted, id)
	return nil
}

// DeleteAll clears the collection. Clearing an already empty collection is
// reported as an error rather than a silent no-op.
func (l *Ledger) DeleteAll(ctx context.Context) (int64, error) {
	n, err := l.col.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("delete all %s records: %w", l.Kind(), ErrEmptyCollection)
	}

	deleted, err := l.col.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}

	l.publish(ctx, notify.ActionCleared, "")
	return deleted, nil
}

// Export serializes the full collection. Exporting nothing is an error for
// the same reason DeleteAll treats it as one.
func (l *Ledger) Export(ctx context.Context) ([]byte, error) {
	records, err := l.col.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export %s records: %w", l.Kind(), ErrEmptyCollection)
	}

	return transfer.Export(l.Kind(), records)
}

// Import parses an import file and bulk-inserts the valid items in one
// transaction. A structurally invalid file fails before any insert; invalid
// items are dropped and show up in the report's Failed count.
func (l *Ledger) Import(ctx context.Context, data []byte) (transfer.Report, error) {
	drafts, report, err := transfer.ParseImport(l.Kind(), data)
	if err != nil {
		return transfer.Report{}, err
	}

	if _, err := l.col.BulkAdd(ctx, drafts); err != nil {
		return transfer.Report{}, fmt.Errorf("import %s records: %w", l.Kind(), err)
	}

	slog.InfoContext(ctx, "Import completed",
		"kind", l.Kind(),
		"success", report.Success,
		"failed", report.Failed,
		"total", report.Total)

	l.publish(ctx, notify.ActionImported, "")
	return report, nil
}

func (l *Ledger) publish(ctx context.Context, action, id string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Publish(ctx, notify.NewEvent(l.Kind(), action, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"kind", l.Kind(),
			"action", action,
			"id", id,
			"error", err)
		// Don't fail the request - the write is already committed
	}
}
