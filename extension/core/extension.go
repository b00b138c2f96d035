// Package core provides the core extension for cmsdb.
// It registers commands: init, config, health, status, serve, mcp,
// vacuum, checkpoint, backup, export, import, guide, version.
package core

import (
	"github.com/jpl-au/cmsdb/extension"
	"github.com/spf13/cobra"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the core extension.
type Extension struct {
	ctx extension.Context
}

// Compile-time interface compliance. Catches missing methods at build time
// rather than runtime, making interface changes safer to refactor.
var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
	_ extension.Storeless     = (*Extension)(nil)
)

// Name returns "core" - this extension provides fundamental cmsdb commands.
func (e *Extension) Name() string { return "core" }

// Init keeps the shared context for the database commands.
func (e *Extension) Init(ctx extension.Context) error {
	e.ctx = ctx
	return nil
}

// Commands returns all core CLI commands for database management.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newInitCmd(),
		newConfigCmd(),
		e.newHealthCmd(),
		e.newStatusCmd(),
		e.newServeCmd(),
		e.newMCPCmd(),
		e.newVacuumCmd(),
		e.newCheckpointCmd(),
		e.newBackupCmd(),
		e.newExportCmd(),
		e.newImportCmd(),
		newGuideCmd(),
		newVersionCmd(),
	}
}

// MCPTools returns nil - the database tools are built into internal/mcp.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

// NoStoreCommands returns commands that run without a configured database.
// version: Displays build info only.
// guide: Reads embedded documentation.
func (e *Extension) NoStoreCommands() []string {
	return []string{"version", "guide"}
}
