// tools_health.go implements the cms_health tool.

package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// health handles cms_health tool calls. An unhealthy database is reported
// as data, not as a tool error, so the LLM can read the message.
func (h *handlers) health(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hs := h.db.HealthCheck(ctx)
	st := h.db.Status()
	return jsonResult(map[string]any{
		"health":  hs,
		"backend": st.Backend,
		"details": st.Details,
	})
}
