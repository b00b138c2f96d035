// coerce.go converts values between the document model and JSON text.
//
// SQLite has no boolean or date type. On write, time.Time becomes an
// ISO-8601 string (store.TimeLayout) and bool becomes 0 or 1, both in the
// stored blob and in query parameters. On read the conversion is reversed
// according to the configured Coercion:
//
//   - CoercionHeuristic walks every value: strings in the exact ISO layout
//     become time.Time and integer 0 or 1 become bool. A genuine integer
//     field holding 0 or 1 therefore reads back as a bool, and a string that
//     happens to look like a timestamp reads back as a time.
//   - CoercionSchema converts only fields declared in the Schema and returns
//     every other value as stored.
//
// Numbers are decoded with json.Number and read back as int64 when they are
// integral. A float64 with no fractional part, such as 30.0, is written as
// 30 and so returns as int64(30) in either mode, where the document store
// keeps it a double. Compare numbers with store.EqualValues rather than by
// Go type.

package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

// Coercion selects the read conversion mode.
type Coercion string

// Coercion modes.
const (
	CoercionHeuristic Coercion = "heuristic"
	CoercionSchema    Coercion = "schema"
)

// FieldKind is a declared field type for CoercionSchema.
type FieldKind string

// Field kinds that need conversion on read.
const (
	KindBool FieldKind = "bool"
	KindTime FieldKind = "time"
)

// Schema maps collection name to field path to kind.
type Schema map[string]map[string]FieldKind

var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

type coercer struct {
	mode   Coercion
	schema Schema
}

func newCoercer(mode Coercion, schema Schema) (coercer, error) {
	switch mode {
	case CoercionHeuristic, CoercionSchema:
	default:
		return coercer{}, fmt.Errorf("%w: unknown coercion mode %q", store.ErrConfiguration, mode)
	}
	for coll, fields := range schema {
		for field, kind := range fields {
			if err := store.ValidateField(field); err != nil {
				return coercer{}, fmt.Errorf("%w: schema %s: %v", store.ErrConfiguration, coll, err)
			}
			if kind != KindBool && kind != KindTime {
				return coercer{}, fmt.Errorf("%w: schema %s.%s: unknown kind %q", store.ErrConfiguration, coll, field, kind)
			}
		}
	}
	return coercer{mode: mode, schema: schema}, nil
}

// read converts a decoded document in place.
func (c coercer) read(coll string, doc store.Document) {
	if c.mode == CoercionHeuristic {
		for k, v := range doc {
			doc[k] = heuristic(v)
		}
		return
	}
	for field, kind := range c.schema[coll] {
		v, ok := store.Lookup(doc, field)
		if !ok {
			continue
		}
		store.SetPath(doc, field, convertKind(v, kind))
	}
}

// readValue converts a single value, as returned by distinct, for field.
func (c coercer) readValue(coll, field string, v any) any {
	if c.mode == CoercionHeuristic {
		return heuristic(v)
	}
	if kind, ok := c.schema[coll][field]; ok {
		return convertKind(v, kind)
	}
	return v
}

func heuristic(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = heuristic(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = heuristic(e)
		}
		return x
	case string:
		if isoPattern.MatchString(x) {
			if t, err := time.Parse(store.TimeLayout, x); err == nil {
				return t
			}
		}
	case int64:
		if x == 0 || x == 1 {
			return x == 1
		}
	}
	return v
}

func convertKind(v any, kind FieldKind) any {
	switch kind {
	case KindBool:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case KindTime:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(store.TimeLayout, s); err == nil {
				return t
			}
		}
	}
	return v
}

// encode converts a normalised value into its stored JSON form.
func encode(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(store.TimeLayout)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encode(e)
		}
		return out
	case store.Document:
		return encode(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encode(e)
		}
		return out
	}
	return v
}

// param converts a normalised filter value into a bind parameter.
// Embedded documents and arrays compare as their canonical JSON text,
// which is what json_extract returns for them.
func param(v any) (any, error) {
	e := encode(v)
	switch e.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode filter value: %w", err)
		}
		return string(b), nil
	}
	return e, nil
}

// marshal encodes a document body for the data column. _id is never
// stored in the blob.
func marshal(doc store.Document) (string, error) {
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == store.FieldID {
			continue
		}
		body[k] = encode(v)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// unmarshal decodes a data column value into a normalised document
// without read coercion.
func unmarshal(text string) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return store.NormalizeDocument(raw)
}

// unmarshalValue decodes a JSON fragment returned by json_extract for an
// object or array.
func unmarshalValue(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return store.NormalizeValue(raw)
}
