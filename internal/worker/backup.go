// Package worker contains the backup worker, which snapshots both record
// collections to JSON files on disk. Snapshots are triggered by change
// events, debounced so a burst of writes produces one file, and by a
// periodic timer as a safety net for missed events.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"chitieu/internal/amqp"
	"chitieu/internal/core"
	"chitieu/internal/storage"
)

const (
	backupPrefix = "backup-"
	backupSuffix = ".json"
)

// Snapshot is the on-disk backup format. It matches the export file shape
// with both collections side by side, so a snapshot can be fed back through
// the import endpoints.
type Snapshot struct {
	CreatedAt time.Time     `json:"createdAt"`
	Expenses  []core.Record `json:"expenses"`
	Incomes   []core.Record `json:"incomes"`
}

type BackupWorker struct {
	store    *storage.Store
	dir      string
	keep     int
	debounce time.Duration
	dirty    chan struct{}
}

// NewBackupWorker writes snapshots to dir, keeping the newest keep files.
func NewBackupWorker(store *storage.Store, dir string, keep int, debounce time.Duration) *BackupWorker {
	if keep < 1 {
		keep = 1
	}
	return &BackupWorker{
		store:    store,
		dir:      dir,
		keep:     keep,
		debounce: debounce,
		dirty:    make(chan struct{}, 1),
	}
}

// HandleEvent processes a single change event from AMQP. The event only
// marks the store dirty; the snapshot itself happens on the worker loop.
func (w *BackupWorker) HandleEvent(ctx context.Context, msg *amqp.RecordEventMessage) error {
	slog.InfoContext(ctx, "Change event received",
		"kind", msg.Kind,
		"action", msg.Action,
		"id", msg.ID)
	w.MarkDirty()
	return nil
}

// MarkDirty requests a snapshot. Never blocks; repeated calls before the
// snapshot runs coalesce into one.
func (w *BackupWorker) MarkDirty() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

// Run drives the snapshot loop until ctx is cancelled. Every interval a
// snapshot is taken unconditionally; dirty marks trigger one after the
// debounce window so bursts collapse into a single file.
func (w *BackupWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.snapshotAndLog(ctx)
		case <-w.dirty:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.debounce):
			}
			w.snapshotAndLog(ctx)
		}
	}
}

func (w *BackupWorker) snapshotAndLog(ctx context.Context) {
	path, err := w.Snapshot(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Backup snapshot failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Backup snapshot written", "path", path)
}

// Snapshot writes one backup file and prunes old ones, returning the path
// of the new file. The file is written to a temp name first and renamed so
// a crash never leaves a truncated backup behind.
func (w *BackupWorker) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	expenses, err := w.store.Expenses().GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("read expenses: %w", err)
	}
	incomes, err := w.store.Incomes().GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("read incomes: %w", err)
	}
	if expenses == nil {
		expenses = []core.Record{}
	}
	if incomes == nil {
		incomes = []core.Record{}
	}

	snap := Snapshot{
		CreatedAt: time.Now().UTC(),
		Expenses:  expenses,
		Incomes:   incomes,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	name := backupPrefix + snap.CreatedAt.Format("20060102-150405.000000000") + backupSuffix
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}

	if err := w.prune(); err != nil {
		slog.WarnContext(ctx, "Failed to prune old backups", "error", err)
	}

	return path, nil
}

// prune removes the oldest backup files beyond the retention count. The
// timestamped names sort chronologically.
func (w *BackupWorker) prune() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	var backups []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() &&
			len(name) > len(backupPrefix)+len(backupSuffix) &&
			name[:len(backupPrefix)] == backupPrefix &&
			filepath.Ext(name) == backupSuffix {
			backups = append(backups, name)
		}
	}
	if len(backups) <= w.keep {
		return nil
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-w.keep] {
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
			return fmt.Errorf("remove old backup %s: %w", name, err)
		}
	}
	return nil
}

// Latest returns the path of the newest backup file, or "" when none exist.
func (w *BackupWorker) Latest() (string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read backup directory: %w", err)
	}

	var newest string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() &&
			len(name) > len(backupPrefix)+len(backupSuffix) &&
			name[:len(backupPrefix)] == backupPrefix &&
			filepath.Ext(name) == backupSuffix &&
			name > newest {
			newest = name
		}
	}
	if newest == "" {
		return "", nil
	}
	return filepath.Join(w.dir, newest), nil
}
