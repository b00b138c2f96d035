// Package store defines the document persistence contract shared by every
// backend. Documents are schemaless maps addressed by a string _id; filters,
// sorts and patches use a small MongoDB-style vocabulary that each backend
// translates into its own query language.
package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Reserved document fields.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Backend identifiers reported by Handler.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Document is a single schemaless record. Values are limited to the set
// produced by NormalizeValue: nil, string, bool, int64, float64, time.Time,
// map[string]any and []any.
type Document map[string]any

// ID returns the document identifier, or "" when unset.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Clone returns a shallow copy so callers can add fields without mutating
// the caller's map.
func (d Document) Clone() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Filter is a MongoDB-style query. See ParseFilter for the accepted shape.
type Filter map[string]any

// Patch is a shallow field-level overwrite applied by the update operations.
type Patch map[string]any

// Keys returns the patch field names in a stable order for logging.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SortField orders results by one field.
type SortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Sort is an ordered list of sort keys; earlier keys take precedence.
type Sort []SortField

// ParseSort parses the CLI form "title,-updatedAt" where a leading '-'
// means descending.
func ParseSort(s string) (Sort, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out Sort
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(strings.TrimPrefix(part, "-"), "+")
		if err := ValidateField(part); err != nil {
			return nil, err
		}
		out = append(out, SortField{Field: part, Desc: desc})
	}
	return out, nil
}

// Validate checks every sort field name.
func (s Sort) Validate() error {
	for _, f := range s {
		if err := ValidateField(f.Field); err != nil {
			return err
		}
	}
	return nil
}

// Projection lists the fields to return. _id is always included. An empty
// projection returns the whole document.
type Projection []string

// Validate checks every projected field name.
func (p Projection) Validate() error {
	for _, f := range p {
		if err := ValidateField(f); err != nil {
			return err
		}
	}
	return nil
}

// FindOptions controls Find.
type FindOptions struct {
	Limit      int64
	Skip       int64
	Sort       Sort
	Projection Projection
}

// Validate checks bounds and field names.
func (o FindOptions) Validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrValidation, o.Limit)
	}
	if o.Skip < 0 {
		return fmt.Errorf("%w: negative skip %d", ErrValidation, o.Skip)
	}
	if err := o.Sort.Validate(); err != nil {
		return err
	}
	return o.Projection.Validate()
}

// FindOneOptions controls FindOne and FindByID.
type FindOneOptions struct {
	Projection Projection
}

// UpdateOptions controls Update and UpdateByID.
type UpdateOptions struct {
	// Upsert inserts a new document when nothing matches.
	Upsert bool
}

// IndexSpec describes a secondary index over one or more document fields.
type IndexSpec struct {
	Keys   Sort
	Unique bool
	// Name overrides the generated "<collection>_<fields>_idx" name.
	Name string
}

// IndexInfo describes an existing index.
type IndexInfo struct {
	Name   string   `json:"name"`
	Keys   []string `json:"keys"`
	Unique bool     `json:"unique,omitempty"`
}

// IndexName returns the default name for an index on coll.
func IndexName(coll string, spec IndexSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	parts := []string{coll}
	for _, k := range spec.Keys {
		parts = append(parts, strings.ReplaceAll(k.Field, ".", "_"))
	}
	return strings.Join(parts, "_") + "_idx"
}

// MarshalJSON encodes a value with indentation for human-readable CLI output.
// Use this instead of json.Marshal when the output will be displayed to users.
func MarshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
