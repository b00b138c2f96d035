// tools_util.go provides helper functions for MCP tool parameter extraction.
//
// Optional parameters are extracted permissively: a missing or mistyped
// optional value falls back to its default, since LLMs often omit them or
// send them in unexpected shapes. Required values are checked by callers.
//
// Object and array parameters arrive as generic JSON. They are re-decoded
// with json.Number so whole numbers become int64 document values instead
// of float64.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getString extracts a string parameter, returning def if it is missing or
// not a string.
func getString(req mcp.CallToolRequest, name, def string) string {
	if v, err := req.RequireString(name); err == nil {
		return v
	}
	return def
}

// getBool extracts a boolean parameter. A string "true" is not accepted.
func getBool(req mcp.CallToolRequest, name string, def bool) bool { //nolint:unparam
	if v, ok := arguments(req)[name].(bool); ok {
		return v
	}
	return def
}

// getInt extracts an integer parameter. JSON numbers decode as float64.
func getInt(req mcp.CallToolRequest, name string, def int64) int64 { //nolint:unparam
	if v, ok := arguments(req)[name].(float64); ok {
		return int64(v)
	}
	return def
}

// getStrings extracts a string array parameter. Non-string elements are
// skipped; nil means the parameter was absent.
func getStrings(req mcp.CallToolRequest, name string) []string {
	arr, ok := arguments(req)[name].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// renumber round-trips v through JSON so integers decode as json.Number.
func renumber(v any, into any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

// getObject extracts an object parameter as a normalised document. The
// second result is false when the parameter is absent.
func getObject(req mcp.CallToolRequest, name string) (store.Document, bool, error) {
	v, ok := arguments(req)[name]
	if !ok || v == nil {
		return nil, false, nil
	}
	var raw map[string]any
	if err := renumber(v, &raw); err != nil {
		return nil, true, fmt.Errorf("%s must be an object: %w", name, err)
	}
	doc, err := store.NormalizeDocument(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", name, err)
	}
	return doc, true, nil
}

// getObjects extracts an array-of-objects parameter.
func getObjects(req mcp.CallToolRequest, name string) ([]map[string]any, error) {
	v, ok := arguments(req)[name]
	if !ok || v == nil {
		return nil, nil
	}
	var raw []map[string]any
	if err := renumber(v, &raw); err != nil {
		return nil, fmt.Errorf("%s must be an array of objects: %w", name, err)
	}
	return raw, nil
}

// getFilter extracts an optional filter; absent means match everything.
func getFilter(req mcp.CallToolRequest) (store.Filter, error) {
	doc, _, err := getObject(req, "filter")
	if err != nil {
		return nil, err
	}
	return store.Filter(doc), nil
}

// requireString returns the named parameter or an error result naming it.
func requireString(req mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	v, err := req.RequireString(name)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", mcp.NewToolResultError(name + " is required")
	}
	return v, nil
}

// jsonResult serialises any value as pretty-printed JSON and wraps it in an
// MCP text result. Indented output is easier for LLMs to read back.
//
// Marshalling errors become tool error results, so every failure reaches
// the LLM the same way.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := store.MarshalJSON(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports err to the LLM as a tool error.
func errorResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
