// maint.go implements database maintenance: checkpoint, vacuum and backup.

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint flushes the WAL into the main database file and truncates it.
func (h *Handler) Checkpoint(ctx context.Context) error {
	db, err := h.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Vacuum rebuilds the database file, reclaiming space left by deletes.
func (h *Handler) Vacuum(ctx context.Context) error {
	db, err := h.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Backup writes a consistent copy of the database to path using
// VACUUM INTO. The target must not already exist.
func (h *Handler) Backup(ctx context.Context, path string) error {
	db, err := h.conn()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("backup target %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup target %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating backup directory %s: %w", dir, err)
		}
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("backup to %s: %w", path, err)
	}
	return nil
}

// Shutdown checkpoints the WAL and closes the database. Checkpoint failure
// does not prevent the close.
func (h *Handler) Shutdown(ctx context.Context) error {
	if !h.IsConnected() {
		return nil
	}
	var errs []error
	if h.opts.Path != memoryPath {
		if err := h.Checkpoint(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.Disconnect(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
