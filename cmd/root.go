/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// root.go defines the root command and CLI execution entry point.
//
// Separated from init_extensions.go to isolate cobra setup from extension
// initialisation logic.
//
// PersistentPreRunE loads configuration and opens the logger for every
// command, then initialises the database facade only for commands that
// need it. The facade itself connects lazily, so even those commands touch
// the backend only when they issue their first operation.

package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownTimeout bounds the disconnect on exit.
const shutdownTimeout = 10 * time.Second

var (
	cfg *config.Config
	met *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "cmsdb",
	Short: "Document database layer for a multi-site CMS",
	Long: `cmsdb stores CMS pages, sites and settings as schemaless documents on
an embedded SQLite file or a MongoDB server, behind one interface.

Backend, paths and logging come from .cmsdb/config.yaml, ~/.cmsdb/config.yaml
and CMS_* environment variables (see "cmsdb config").`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if output != "" && !slices.Contains(validOutputFormats, output) {
			return fmt.Errorf("invalid output format: %s (valid: %v)", output, validOutputFormats)
		}

		cmdName := topLevelCmdName(cmd)
		needsStore := !noStoreCommands[cmdName]

		loaded, err := config.Load()
		if err != nil {
			if needsStore {
				return failInit(cmd, fmt.Errorf("load config: %w", err))
			}
			// Storeless commands (config in particular) must still run so
			// a broken file can be fixed.
			loaded = &config.Config{}
		}
		cfg = loaded

		if err := log.Open(cfg.LogOptions()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: logger unavailable: %v\n", err)
		}

		if needsStore {
			if err := initExtensions(cfg); err != nil {
				return failInit(cmd, fmt.Errorf("initialise extensions: %w", err))
			}
		}
		return nil
	},
}

// failInit reports a setup error, as JSON when requested.
func failInit(cmd *cobra.Command, err error) error {
	if JSON() {
		_ = PrintJSON(map[string]string{"error": err.Error()})
		cmd.SilenceErrors = true
	}
	return err
}

// topLevelCmdName returns the name of the top-level command (direct child of root).
// For "cmsdb find pages", returns "find".
// For "cmsdb index add pages title", returns "index".
func topLevelCmdName(cmd *cobra.Command) string {
	// Walk up until we find a command whose parent has no parent (the root)
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

// Execute runs the root command and handles process lifecycle.
// Registers extensions and metrics, executes the command, and shuts the
// database down before exit. Exit code 1 indicates error.
func Execute() {
	met = metrics.New()
	detach := met.Attach()

	registerExtensions()
	err := rootCmd.Execute()

	if extDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if closeErr := extDB.Shutdown(ctx); closeErr != nil {
			log.L().Warn("shutdown", zap.Error(closeErr))
			fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", closeErr)
		}
		cancel()
	}
	detach()
	log.Close()

	if err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing and extension access.
func RootCmd() *cobra.Command {
	return rootCmd
}

// Config returns the configuration loaded for the running command.
func Config() *config.Config {
	return cfg
}

// Metrics returns the process metrics, fed by every logged operation.
// It is nil outside Execute.
func Metrics() *metrics.Metrics {
	return met
}

// Context returns a context bounded by the --timeout flag.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, Timeout())
}
