// tools_diff.go implements the MCP tool for comparing two documents.
//
// Diff lets LLMs see how two records differ (a page and its copy, two
// sites) as a unified diff of their JSON.

package mcp

import (
	"context"
	"fmt"

	"github.com/jpl-au/cmsdb/internal/diff"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// diffDocuments handles cms_diff tool calls.
func (h *handlers) diffDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	id, res := requireString(req, "id")
	if res != nil {
		return res, nil
	}
	other, res := requireString(req, "other")
	if res != nil {
		return res, nil
	}

	l := log.Event("mcp:cms_diff", "diff").Collection(coll).ID(id).Detail("other", other)
	docs := make([]store.Document, 2)
	for i, docID := range []string{id, other} {
		doc, err := h.db.FindByID(ctx, coll, docID, store.FindOneOptions{})
		if err != nil {
			l.Write(err)
			return errorResult(err)
		}
		if doc == nil {
			err = fmt.Errorf("document %s not found in %s", docID, coll)
			l.Write(err)
			return errorResult(err)
		}
		// Ids and timestamps always differ; compare content only.
		delete(doc, store.FieldID)
		delete(doc, store.FieldCreatedAt)
		delete(doc, store.FieldUpdatedAt)
		docs[i] = doc
	}

	r, err := diff.Documents(docs[0], docs[1], coll+"/"+id, coll+"/"+other)
	l.Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"changed": r.Changed(),
		"fields":  r.Fields,
		"diff":    r.Format(false),
	})
}
