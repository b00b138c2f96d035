// filter.go parses MongoDB-style filters into a backend-neutral condition
// list.
//
// A filter maps field paths to either a literal (equality) or an operator
// map whose keys all begin with '$'. A map value without any '$' keys is
// equality against an embedded document. Every backend consumes the same
// []Condition, which keeps their selection semantics aligned.

package store

import (
	"fmt"
	"slices"
	"strings"
)

// Op is a comparison operator.
type Op string

// Supported operators.
const (
	OpEq    Op = "$eq"
	OpNe    Op = "$ne"
	OpGt    Op = "$gt"
	OpGte   Op = "$gte"
	OpLt    Op = "$lt"
	OpLte   Op = "$lte"
	OpIn    Op = "$in"
	OpRegex Op = "$regex"
)

var supportedOps = map[Op]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true,
	OpLt: true, OpLte: true, OpIn: true, OpRegex: true,
}

// Condition is one predicate. All conditions of a filter are ANDed.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// ParseFilter validates f and returns its conditions ordered by field then
// operator. A nil or empty filter yields no conditions and matches every
// document.
func ParseFilter(f Filter) ([]Condition, error) {
	if len(f) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	slices.Sort(fields)

	var conds []Condition
	for _, field := range fields {
		if strings.HasPrefix(field, "$") {
			return nil, fmt.Errorf("%w: top-level operator %q is not supported", ErrValidation, field)
		}
		if err := ValidateField(field); err != nil {
			return nil, err
		}
		cs, err := parseFieldValue(field, f[field])
		if err != nil {
			return nil, err
		}
		conds = append(conds, cs...)
	}
	return conds, nil
}

func parseFieldValue(field string, raw any) ([]Condition, error) {
	m, isMap := asFilterMap(raw)
	if !isMap || len(m) == 0 {
		v, err := NormalizeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", field, err)
		}
		return []Condition{{Field: field, Op: OpEq, Value: v}}, nil
	}

	ops, plain := 0, 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			ops++
		} else {
			plain++
		}
	}
	switch {
	case ops > 0 && plain > 0:
		return nil, fmt.Errorf("%w: filter %q mixes operators and fields", ErrValidation, field)
	case ops == 0:
		v, err := NormalizeValue(m)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", field, err)
		}
		return []Condition{{Field: field, Op: OpEq, Value: v}}, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	conds := make([]Condition, 0, len(keys))
	for _, k := range keys {
		op := Op(k)
		if !supportedOps[op] {
			return nil, fmt.Errorf("%w: unsupported operator %q on %q", ErrValidation, k, field)
		}
		v, err := NormalizeValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("filter %q %s: %w", field, k, err)
		}
		switch op {
		case OpIn:
			if _, ok := v.([]any); !ok {
				return nil, fmt.Errorf("%w: %s on %q needs an array", ErrValidation, k, field)
			}
		case OpRegex:
			if _, ok := v.(string); !ok {
				return nil, fmt.Errorf("%w: %s on %q needs a string", ErrValidation, k, field)
			}
		}
		conds = append(conds, Condition{Field: field, Op: op, Value: v})
	}
	return conds, nil
}

func asFilterMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	case Filter:
		return m, true
	}
	return nil, false
}

// EqualityFields returns the plain equality conditions of conds as a
// document. Upserts seed the new document from it.
func EqualityFields(conds []Condition) Document {
	doc := Document{}
	for _, c := range conds {
		if c.Op == OpEq && c.Field != FieldID {
			SetPath(doc, c.Field, c.Value)
		}
	}
	return doc
}

// Matches evaluates conds against doc in memory. It follows the relational
// backend's semantics: $regex is a case-insensitive substring match and
// arrays are compared as whole values.
func Matches(doc Document, conds []Condition) bool {
	for _, c := range conds {
		v, ok := Lookup(doc, c.Field)
		if !ok {
			v = nil
		}
		if !matchOne(v, c) {
			return false
		}
	}
	return true
}

func matchOne(v any, c Condition) bool {
	switch c.Op {
	case OpEq:
		if c.Value == nil {
			return v == nil
		}
		return v != nil && EqualValues(v, c.Value)
	case OpNe:
		if c.Value == nil {
			return v != nil
		}
		return v == nil || !EqualValues(v, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		if v == nil || c.Value == nil {
			return false
		}
		n := CompareValues(v, c.Value)
		switch c.Op {
		case OpGt:
			return n > 0
		case OpGte:
			return n >= 0
		case OpLt:
			return n < 0
		default:
			return n <= 0
		}
	case OpIn:
		for _, want := range c.Value.([]any) {
			if v != nil && EqualValues(v, want) {
				return true
			}
		}
		return false
	case OpRegex:
		s, ok := v.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(c.Value.(string)))
	}
	return false
}
