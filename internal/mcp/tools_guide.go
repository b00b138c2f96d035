// tools_guide.go implements the cms_guide tool.

package mcp

import (
	"context"

	"github.com/jpl-au/cmsdb/guide"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/mark3labs/mcp-go/mcp"
)

// getGuide handles cms_guide tool calls. An unknown topic returns the list
// of available topics rather than a tool error.
func (h *handlers) getGuide(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := getString(req, "topic", "")

	content, err := guide.Get(topic)
	log.Event("mcp:guide", "read").Detail("topic", topic).Write(err)
	if err != nil {
		topics, listErr := guide.List()
		if listErr != nil {
			return errorResult(listErr)
		}
		return jsonResult(map[string]any{
			"error":            err.Error(),
			"available_topics": topics,
		})
	}
	return mcp.NewToolResultText(content), nil
}
