// tools_documents.go implements MCP tools for document operations.
//
// These tools mirror the CLI commands (find, get, count, create, update,
// rm, distinct, aggregate) but return structured JSON for LLM consumption
// rather than tables.
//
// Errors return MCP tool error results rather than Go errors, so the LLM
// receives feedback it can act on instead of a protocol-level failure.
// Validation happens in the database facade; tools only check that
// required parameters are present.

package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpl-au/cmsdb/internal/diff"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// findDocuments handles cms_find tool calls.
func (h *handlers) findDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	f, err := getFilter(req)
	if err != nil {
		return errorResult(err)
	}
	sort, err := store.ParseSort(getString(req, "sort", ""))
	if err != nil {
		return errorResult(err)
	}
	opts := store.FindOptions{
		Sort:       sort,
		Limit:      getInt(req, "limit", 0),
		Skip:       getInt(req, "skip", 0),
		Projection: store.Projection(getStrings(req, "fields")),
	}

	l := log.Event("mcp:cms_find", "find").Collection(coll)
	docs, err := h.db.Find(ctx, coll, f, opts)
	l.Detail("count", len(docs)).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"count": len(docs), "documents": docs})
}

// getDocument handles cms_get tool calls. A missing document is an error
// result so the LLM does not mistake null for content.
func (h *handlers) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	id, res := requireString(req, "id")
	if res != nil {
		return res, nil
	}

	doc, err := h.db.FindByID(ctx, coll, id, store.FindOneOptions{})
	log.Event("mcp:cms_get", "get").Collection(coll).ID(id).Write(err)
	if err != nil {
		return errorResult(err)
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document %s not found in %s", id, coll)), nil
	}
	return jsonResult(doc)
}

// countDocuments handles cms_count tool calls.
func (h *handlers) countDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	f, err := getFilter(req)
	if err != nil {
		return errorResult(err)
	}

	n, err := h.db.Count(ctx, coll, f)
	log.Event("mcp:cms_count", "count").Collection(coll).Detail("count", n).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]int64{"count": n})
}

// createDocuments handles cms_create tool calls. Exactly one of document
// and documents must be given.
func (h *handlers) createDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	doc, single, err := getObject(req, "document")
	if err != nil {
		return errorResult(err)
	}
	batch, err := getObjects(req, "documents")
	if err != nil {
		return errorResult(err)
	}
	if single == (batch != nil) {
		return mcp.NewToolResultError("provide either document or documents"), nil
	}

	l := log.Event("mcp:cms_create", "create").Collection(coll)
	if single {
		created, err := h.db.Create(ctx, coll, doc)
		l.ID(created.ID()).Write(err)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(created)
	}

	docs := make([]store.Document, len(batch))
	for i, raw := range batch {
		d, err := store.NormalizeDocument(raw)
		if err != nil {
			l.Write(err)
			return errorResult(fmt.Errorf("documents[%d]: %w", i, err))
		}
		docs[i] = d
	}
	created, err := h.db.CreateMany(ctx, coll, docs)
	l.Detail("count", len(created)).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"count": len(created), "documents": created})
}

// updateDocuments handles cms_update tool calls.
//
// With an id, the document is read before and after the patch and the
// result carries a unified diff, so the LLM can confirm exactly what
// changed. With a filter, only the matched count is returned.
func (h *handlers) updateDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	patch, ok, err := getObject(req, "patch")
	if err != nil {
		return errorResult(err)
	}
	if !ok {
		return mcp.NewToolResultError("patch is required"), nil
	}
	opts := store.UpdateOptions{Upsert: getBool(req, "upsert", false)}
	id := getString(req, "id", "")

	l := log.Event("mcp:cms_update", "update").Collection(coll).Detail("upsert", opts.Upsert)
	if id != "" {
		l.ID(id)
		before, err := h.db.FindByID(ctx, coll, id, store.FindOneOptions{})
		if err != nil {
			l.Write(err)
			return errorResult(err)
		}
		after, err := h.db.UpdateByID(ctx, coll, id, store.Patch(patch), opts)
		l.Write(err)
		if err != nil {
			return errorResult(err)
		}
		if after == nil {
			return mcp.NewToolResultError(fmt.Sprintf("document %s not found in %s", id, coll)), nil
		}
		d, err := diff.Documents(before, after, "before", "after")
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"document": after, "diff": d.Format(false), "fields": d.Fields})
	}

	f, err := getFilter(req)
	if err != nil {
		return errorResult(err)
	}
	n, err := h.db.Update(ctx, coll, f, store.Patch(patch), opts)
	l.Detail("matched", n).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]int64{"matched": n})
}

// errEmptyDelete guards against deleting a whole collection by omission.
var errEmptyDelete = errors.New("cms_delete needs an id or a non-empty filter")

// deleteDocuments handles cms_delete tool calls.
func (h *handlers) deleteDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	l := log.Event("mcp:cms_delete", "delete").Collection(coll)

	if id := getString(req, "id", ""); id != "" {
		ok, err := h.db.DeleteByID(ctx, coll, id)
		l.ID(id).Write(err)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]bool{"deleted": ok})
	}

	f, err := getFilter(req)
	if err != nil {
		return errorResult(err)
	}
	if len(f) == 0 {
		return errorResult(errEmptyDelete)
	}
	n, err := h.db.Delete(ctx, coll, f)
	l.Detail("deleted", n).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]int64{"deleted": n})
}

// distinctValues handles cms_distinct tool calls.
func (h *handlers) distinctValues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	field, res := requireString(req, "field")
	if res != nil {
		return res, nil
	}
	f, err := getFilter(req)
	if err != nil {
		return errorResult(err)
	}

	vals, err := h.db.Distinct(ctx, coll, field, f)
	log.Event("mcp:cms_distinct", "distinct").Collection(coll).Detail("field", field).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"field": field, "values": vals})
}

// aggregateDocuments handles cms_aggregate tool calls.
func (h *handlers) aggregateDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coll, res := requireString(req, "collection")
	if res != nil {
		return res, nil
	}
	raw, err := getObjects(req, "pipeline")
	if err != nil {
		return errorResult(err)
	}
	if raw == nil {
		return mcp.NewToolResultError("pipeline is required"), nil
	}
	p, err := store.ParsePipeline(raw)
	if err != nil {
		return errorResult(err)
	}

	docs, err := h.db.Aggregate(ctx, coll, p)
	log.Event("mcp:cms_aggregate", "aggregate").Collection(coll).Detail("stages", len(p)).Write(err)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(docs)
}
