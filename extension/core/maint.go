// maint.go implements the SQLite maintenance commands: vacuum, checkpoint
// and backup.
//
// These map to the optional store.Maintainer capability. On Mongo the
// facade returns store.ErrUnsupported, which is reported as-is.

package core

import (
	"context"
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

func (e *Extension) newVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the SQLite database file",
		Long: `Rebuilds the SQLite database file, reclaiming space left by deleted
documents. Not supported on MongoDB.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return e.maintain(c, "vacuum", func(ctx context.Context, db *database.Database) error {
				return db.Vacuum(ctx)
			})
		},
	}
}

func (e *Extension) newCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Flush the SQLite write-ahead log",
		Long:  `Copies the write-ahead log into the main database file and truncates it. Not supported on MongoDB.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return e.maintain(c, "checkpoint", func(ctx context.Context, db *database.Database) error {
				return db.Checkpoint(ctx)
			})
		},
	}
}

func (e *Extension) newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <path>",
		Short: "Write a consistent copy of the SQLite database",
		Long: `Writes a consistent snapshot of the SQLite database to path while it
stays online. The target must not exist. Not supported on MongoDB.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return e.maintain(c, "backup", func(ctx context.Context, db *database.Database) error {
				return db.Backup(ctx, args[0])
			})
		},
	}
}

// maintain runs one maintenance action under the command timeout.
func (e *Extension) maintain(c *cobra.Command, action string, fn func(context.Context, *database.Database) error) error {
	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	db := e.ctx.Database()
	err := fn(ctx, db)
	log.Event("core:"+action, action).Detail("backend", db.Backend()).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("%s: %w", action, err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]any{"action": action, "ok": true})
	}
	fmt.Fprintf(cmd.Out(), "%s complete\n", action)
	return nil
}
