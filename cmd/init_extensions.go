/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// init_extensions.go handles extension initialisation and command registration.
//
// Separated from root.go to isolate the initialisation logic that builds
// the database facade and wires up extensions.
//
// Extensions register during init() but aren't initialised until first
// command execution. This two-phase pattern allows extensions to declare
// commands before configuration is known. The facade is created once and
// shared across all extensions via the Context.

package cmd

import (
	"fmt"
	"sync"

	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/database"
)

// noStoreCommands lists commands that bypass database initialisation.
// Built dynamically from bootstrap commands plus extension-declared storeless commands.
var noStoreCommands map[string]bool

// buildNoStoreCommands creates the set of commands that skip database
// initialisation.
//
// Most commands need the facade, but some must work without a valid
// database configuration:
//
//  1. Bootstrap commands (config, help, completion) that set up or explain
//     cmsdb before a backend is configured.
//
//  2. Extension-declared storeless commands via extension.Storeless.
//
// When adding a new command: If it's a core bootstrap command, add it here.
// Otherwise, implement extension.Storeless in your extension.
func buildNoStoreCommands() map[string]bool {
	cmds := map[string]bool{
		"config":     true,
		"help":       true,
		"completion": true,
	}

	for _, name := range extension.StorelessCommands() {
		cmds[name] = true
	}
	return cmds
}

// Global extension context, created during initialisation.
var (
	extContext extension.Context
	extDB      *database.Database
	initOnce   sync.Once
	initErr    error
)

// initExtensions creates the database facade and injects it into extensions.
//
// sync.Once guarantees one facade per process: every extension shares its
// connection and single-flight state. New only validates configuration;
// nothing connects until the first operation.
func initExtensions(cfg *config.Config) error {
	initOnce.Do(func() {
		db, err := database.New(cfg.DatabaseConfig())
		if err != nil {
			initErr = fmt.Errorf("configure database: %w", err)
			return
		}
		extDB = db
		extContext = extension.NewContext(db, cfg)

		for _, ext := range extension.All() {
			if init, ok := ext.(extension.Initializable); ok {
				if err := init.Init(extContext); err != nil {
					initErr = fmt.Errorf("init extension %s: %w", ext.Name(), err)
					return
				}
			}
		}
	})
	return initErr
}

// ExtContext returns the shared extension context, or nil before
// initialisation.
func ExtContext() extension.Context {
	return extContext
}

var extensionsOnce sync.Once

// registerExtensions adds commands from all registered extensions.
// Called once before Execute runs.
func registerExtensions() {
	extensionsOnce.Do(func() {
		for _, ext := range extension.All() {
			for _, cmd := range ext.Commands() {
				rootCmd.AddCommand(cmd)
			}
		}

		noStoreCommands = buildNoStoreCommands()
	})
}
