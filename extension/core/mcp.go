// mcp.go implements the "cmsdb mcp" command.
//
// The MCP server runs over stdio until the client disconnects. It uses the
// shared facade, so the connection is established lazily by the first tool
// call and closed by the root command on exit.

package core

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/mcp"
	"github.com/spf13/cobra"
)

func (e *Extension) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long: `Start an MCP (Model Context Protocol) server over stdio.

Tools: cms_find, cms_get, cms_count, cms_create, cms_update, cms_delete,
cms_distinct, cms_aggregate, cms_diff, cms_health, plus the tools of
installed extensions.

Resources: cms://{collection}/{id}`,
		Args: cobra.NoArgs,
		RunE: e.runMCP,
	}
}

func (e *Extension) runMCP(_ *cobra.Command, _ []string) error {
	if err := mcp.Serve(e.ctx, extension.Tools()); err != nil {
		return cmd.PrintJSONError(fmt.Errorf("mcp: %w", err))
	}
	return nil
}
