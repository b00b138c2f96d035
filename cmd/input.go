/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// input.go parses JSON documents, filters and projections from arguments.
//
// Commands take documents as a JSON argument, or read them from stdin when
// the argument is "-" or omitted. Numbers decode as json.Number so integers
// survive unchanged into the store's int64 values.

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
)

// in is the input reader for "-" arguments. Tests can replace it.
var in io.Reader = os.Stdin

// SetIn sets the input reader (for testing).
func SetIn(r io.Reader) { in = r }

// In returns the input reader.
func In() io.Reader { return in }

// ReadJSON decodes arg as JSON into v. An empty arg or "-" reads stdin.
func ReadJSON(arg string, v any) error {
	var data []byte
	if arg == "" || arg == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		data = b
	} else {
		data = []byte(arg)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", store.ErrValidation, err)
	}
	return nil
}

// ParseDocument decodes a JSON object into a normalised document.
func ParseDocument(arg string) (store.Document, error) {
	var raw map[string]any
	if err := ReadJSON(arg, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", store.ErrValidation)
	}
	return store.NormalizeDocument(raw)
}

// ParseFilter decodes a JSON filter. An empty string matches everything;
// it never reads stdin.
func ParseFilter(arg string) (store.Filter, error) {
	if strings.TrimSpace(arg) == "" {
		return store.Filter{}, nil
	}
	doc, err := ParseDocument(arg)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return store.Filter(doc), nil
}

// ParseFields splits a comma-separated projection.
func ParseFields(arg string) store.Projection {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	var p store.Projection
	for _, f := range strings.Split(arg, ",") {
		if f = strings.TrimSpace(f); f != "" {
			p = append(p, f)
		}
	}
	return p
}
