// tools.go defines the content MCP tools. They run the CMS actions, so
// route and domain rules apply, unlike the raw cms_update tool.

package content

import (
	"context"
	"encoding/json"

	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/mark3labs/mcp-go/mcp"
)

func tools() []extension.MCPTool {
	return []extension.MCPTool{
		{
			Tool: mcp.NewTool("cms_pages",
				mcp.WithDescription("List pages, newest edit first by default"),
				mcp.WithString("site", mcp.Description("Only pages of this site id")),
				mcp.WithBoolean("published", mcp.Description("Filter on published state")),
				mcp.WithString("sort", mcp.Description("newest, oldest, title, route or updated")),
				mcp.WithNumber("limit", mcp.Description("Maximum pages to return")),
			),
			Handler: listPages,
		},
		{
			Tool: mcp.NewTool("cms_page_publish",
				mcp.WithDescription("Publish a page, or take it offline with publish=false"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Page id")),
				mcp.WithBoolean("publish", mcp.Description("true to publish (default), false to unpublish")),
			),
			Handler: publishPage,
		},
		{
			Tool: mcp.NewTool("cms_sites",
				mcp.WithDescription("List sites with their domains and default flag"),
				mcp.WithBoolean("active", mcp.Description("Filter on active state")),
			),
			Handler: listSites,
		},
		{
			Tool: mcp.NewTool("cms_settings",
				mcp.WithDescription("Read global settings; pass a value to change it"),
				mcp.WithBoolean("multiSiteEnabled", mcp.Description("Enable multi-site mode")),
				mcp.WithString("routingType", mcp.Description("path or domain")),
			),
			Handler: settings,
		},
	}
}

// optional returns a boolean argument only when the caller supplied it.
func optional(req mcp.CallToolRequest, name string) *bool {
	v, ok := req.GetArguments()[name].(bool)
	if !ok {
		return nil
	}
	return &v
}

func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func listPages(ctx context.Context, ext extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := cms.PageQuery{
		SiteID:    req.GetString("site", ""),
		Published: optional(req, "published"),
		Sort:      cms.Sort(req.GetString("sort", "")),
		Limit:     int64(req.GetInt("limit", 0)),
	}
	pages, err := ext.CMS().ListPages(ctx, q)
	log.Event("mcp:cms_pages", "list").Detail("count", len(pages)).Write(err)
	if pages == nil {
		pages = []*cms.Page{}
	}
	return result(pages, err)
}

func publishPage(ctx context.Context, ext extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	publish := req.GetBool("publish", true)

	var page *cms.Page
	if publish {
		page, err = ext.CMS().PublishPage(ctx, id)
	} else {
		page, err = ext.CMS().UnpublishPage(ctx, id)
	}
	log.Event("mcp:cms_page_publish", "publish").ID(id).Detail("publish", publish).Write(err)
	return result(page, err)
}

func listSites(ctx context.Context, ext extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sites, err := ext.CMS().ListSites(ctx, cms.SiteQuery{Active: optional(req, "active")})
	log.Event("mcp:cms_sites", "list").Detail("count", len(sites)).Write(err)
	if sites == nil {
		sites = []*cms.Site{}
	}
	return result(sites, err)
}

func settings(ctx context.Context, ext extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u := cms.SettingsUpdate{MultiSite: optional(req, "multiSiteEnabled")}
	if r := req.GetString("routingType", ""); r != "" {
		rt := cms.RoutingType(r)
		u.RoutingType = &rt
	}

	if u.MultiSite == nil && u.RoutingType == nil {
		s, err := ext.CMS().GetGlobalSettings(ctx)
		log.Event("mcp:cms_settings", "get").Write(err)
		return result(s, err)
	}
	s, err := ext.CMS().SaveGlobalSettings(ctx, u)
	log.Event("mcp:cms_settings", "save").Write(err)
	return result(s, err)
}
