// Package content provides the content extension: page, site and settings
// commands over the CMS actions, plus MCP tools for the same actions.
//
// Unlike the document extension, these commands enforce the CMS rules:
// unique routes and domains, a single default site, and a settings
// singleton.
package content

import (
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/spf13/cobra"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the content extension.
type Extension struct {
	svc *cms.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "content".
func (e *Extension) Name() string { return "content" }

// Init keeps the shared content actions.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.CMS()
	return nil
}

// Commands returns the page, site and settings command trees.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newPageCmd(),
		e.newSiteCmd(),
		e.newSettingsCmd(),
	}
}

// MCPTools returns the content tools.
func (e *Extension) MCPTools() []extension.MCPTool {
	return tools()
}
