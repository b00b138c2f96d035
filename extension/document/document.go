// Package document provides the document extension for collection CRUD.
// Registers commands: find, get, create, update, rm, count, distinct,
// aggregate.
//
// Every command takes the collection as its first argument and passes
// straight through to the database facade, so they behave identically on
// SQLite and MongoDB. Each command file is separated to isolate its
// specific flag handling and output formatting logic.
package document

import (
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/spf13/cobra"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the document extension.
type Extension struct {
	db *database.Database
}

// Compile-time interface compliance. Catches missing methods at build time
// rather than runtime, making interface changes safer to refactor.
var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "document" - this extension handles generic document operations.
func (e *Extension) Name() string { return "document" }

// Init keeps the shared facade.
func (e *Extension) Init(ctx extension.Context) error {
	e.db = ctx.Database()
	return nil
}

// Commands returns the document commands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newFindCmd(),
		e.newGetCmd(),
		e.newCreateCmd(),
		e.newUpdateCmd(),
		e.newRmCmd(),
		e.newCountCmd(),
		e.newDistinctCmd(),
		e.newAggregateCmd(),
	}
}

// MCPTools returns nil - document MCP tools are provided by internal/mcp package.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}
