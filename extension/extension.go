// Package extension provides the plugin architecture for cmsdb. Extensions
// encapsulate related functionality (commands, MCP tools) and register at
// init time, enabling modular feature development without touching core code.
package extension

import (
	"github.com/spf13/cobra"
)

// Extension defines the contract for cmsdb extensions.
type Extension interface {
	// Name returns a unique identifier for this extension.
	Name() string

	// Commands returns CLI commands to register with the root command.
	Commands() []*cobra.Command

	// MCPTools returns MCP tools to register with the server.
	MCPTools() []MCPTool
}

// Initializable extensions receive the shared Context before their
// commands run.
type Initializable interface {
	Extension
	Init(ctx Context) error
}

// Storeless is an optional interface for extensions with commands that
// don't require a database. Commands returned by NoStoreCommands() will
// not trigger database initialisation in PersistentPreRunE.
//
// Use cases:
// 1. Bootstrap commands (like config) that run before any database exists
// 2. Commands that manage their own database lifecycle
// 3. Utility commands such as version
type Storeless interface {
	NoStoreCommands() []string
}
