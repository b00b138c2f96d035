// resources.go implements MCP resource handlers for document access.
//
// MCP resources provide read-only access to documents via URIs, letting
// clients load a record as context without calling a tool. URIs follow
// cms://{collection}/{id}.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// uriScheme prefixes every document resource URI.
const uriScheme = "cms://"

var (
	// ErrInvalidURI indicates a malformed resource URI.
	ErrInvalidURI = errors.New("invalid URI")
	// ErrNotFound indicates the URI names no document.
	ErrNotFound = errors.New("document not found")
)

// readDocument handles cms://{collection}/{id} resource requests.
func (h *handlers) readDocument(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	coll, id, err := parseDocumentURI(uri)
	if err != nil {
		return nil, err
	}

	doc, err := h.db.FindByID(ctx, coll, id, store.FindOneOptions{})
	log.Event("mcp:resource", "read").Collection(coll).ID(id).Write(err)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	data, err := store.MarshalJSON(doc)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// parseDocumentURI extracts collection and id from cms://{collection}/{id}.
func parseDocumentURI(uri string) (coll, id string, err error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	coll, id, ok = strings.Cut(rest, "/")
	if !ok || coll == "" || id == "" || strings.Contains(id, "/") {
		return "", "", fmt.Errorf("%w: want %s{collection}/{id}, got %s", ErrInvalidURI, uriScheme, uri)
	}
	return coll, id, nil
}
