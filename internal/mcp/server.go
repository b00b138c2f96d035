// Package mcp implements the Model Context Protocol server, exposing cmsdb
// operations to LLMs. Assistants can query, create and change documents in
// any collection through a standardised protocol.
package mcp

import (
	"context"
	"errors"

	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/version"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Name is advertised to clients.
const Name = "cmsdb"

// Serve starts the MCP server over stdio.
//
// The database connects lazily, so the server starts even when the backend
// is down; tools then report the connection error and cms_health explains
// it. Logs go to stderr because stdout carries JSON-RPC.
func Serve(extCtx extension.Context, tools []extension.MCPTool) error {
	s := NewServer(extCtx, tools)

	log.L().Info("MCP server ready",
		zap.String("version", version.Short()),
		zap.String("transport", "stdio"),
		zap.String("backend", extCtx.Database().Backend()))

	err := server.ServeStdio(s)
	if errors.Is(err, context.Canceled) {
		log.L().Info("MCP server stopped")
		return nil
	}
	return err
}

// NewServer builds the server with the built-in tools plus tools
// contributed by extensions.
func NewServer(extCtx extension.Context, tools []extension.MCPTool) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		version.Short(),
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	h := &handlers{ext: extCtx, db: extCtx.Database()}
	registerResources(s, h)
	registerTools(s, h)

	for _, t := range tools {
		handler := t.Handler
		s.AddTool(t.Tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handler(ctx, extCtx, req)
		})
	}
	return s
}

// handlers provides MCP request handlers with access to the database.
type handlers struct {
	ext extension.Context
	db  *database.Database
}

// registerResources adds URI-based access for direct document reading.
func registerResources(s *server.MCPServer, h *handlers) {
	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"cms://{collection}/{id}",
			"Document",
			mcp.WithTemplateDescription("Read a document by collection and id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		h.readDocument,
	)
}

// registerTools exposes cmsdb operations as MCP tools for LLM invocation.
func registerTools(s *server.MCPServer, h *handlers) {
	s.AddTool(
		mcp.NewTool("cms_find",
			mcp.WithDescription("Find documents in a collection matching a filter"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name (e.g. pages, sites)")),
			mcp.WithObject("filter", mcp.Description(`Filter document, e.g. {"isPublished": true} or {"views": {"$gte": 10}}`)),
			mcp.WithString("sort", mcp.Description(`Comma-separated fields, "-" prefix for descending (e.g. "-createdAt,title")`)),
			mcp.WithNumber("limit", mcp.Description("Maximum documents to return")),
			mcp.WithNumber("skip", mcp.Description("Documents to skip")),
			mcp.WithArray("fields", mcp.Description("Fields to return (default: all)"), mcp.Items(map[string]any{"type": "string"})),
		),
		h.findDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_get",
			mcp.WithDescription("Get one document by id"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		),
		h.getDocument,
	)

	s.AddTool(
		mcp.NewTool("cms_count",
			mcp.WithDescription("Count documents matching a filter"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithObject("filter", mcp.Description("Filter document (default: all)")),
		),
		h.countDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_create",
			mcp.WithDescription("Create a document, or several with 'documents'. createdAt and updatedAt are set automatically"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithObject("document", mcp.Description("Document to create")),
			mcp.WithArray("documents", mcp.Description("Documents to create in one batch"), mcp.Items(map[string]any{"type": "object"})),
		),
		h.createDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_update",
			mcp.WithDescription("Set fields on one document by id, or on every document matching a filter. Updating by id returns the document and a diff"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithObject("patch", mcp.Required(), mcp.Description(`Fields to set, dotted paths allowed (e.g. {"seo.title": "Home"})`)),
			mcp.WithString("id", mcp.Description("Document id")),
			mcp.WithObject("filter", mcp.Description("Filter used when no id is given")),
			mcp.WithBoolean("upsert", mcp.Description("Create a document when nothing matches")),
		),
		h.updateDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_delete",
			mcp.WithDescription("Delete one document by id, or every document matching a non-empty filter"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithString("id", mcp.Description("Document id")),
			mcp.WithObject("filter", mcp.Description("Filter used when no id is given")),
		),
		h.deleteDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_distinct",
			mcp.WithDescription("List the distinct values of a field"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithString("field", mcp.Required(), mcp.Description("Field path")),
			mcp.WithObject("filter", mcp.Description("Filter document (default: all)")),
		),
		h.distinctValues,
	)

	s.AddTool(
		mcp.NewTool("cms_aggregate",
			mcp.WithDescription("Run an aggregation pipeline ($match, $group with $sum or $count, $sort, $limit)"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithArray("pipeline", mcp.Required(), mcp.Description("Pipeline stages"), mcp.Items(map[string]any{"type": "object"})),
		),
		h.aggregateDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_diff",
			mcp.WithDescription("Show the differences between two documents of a collection"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithString("id", mcp.Required(), mcp.Description("First document id")),
			mcp.WithString("other", mcp.Required(), mcp.Description("Second document id")),
		),
		h.diffDocuments,
	)

	s.AddTool(
		mcp.NewTool("cms_health",
			mcp.WithDescription("Check the database connection and report backend status"),
		),
		h.health,
	)

	s.AddTool(
		mcp.NewTool("cms_guide",
			mcp.WithDescription("Read the cmsdb guide: overview, filters, backends, content, transfer"),
			mcp.WithString("topic", mcp.Description("Guide topic (empty for the overview)")),
		),
		h.getGuide,
	)
}
