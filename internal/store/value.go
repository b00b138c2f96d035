// value.go enforces the closed set of document value types.
//
// Every value crossing into a backend is one of: nil, string, bool, int64,
// float64, time.Time (UTC, millisecond precision), map[string]any or []any.
// NormalizeValue converts ordinary Go values (int, []string, nested structs
// of maps) into that set and rejects anything else, so backends only ever
// switch over a known list of types.

package store

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// TimeLayout is the textual form used wherever a timestamp must be stored
// as a string: ISO-8601 UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// NormalizeDocument returns a copy of doc with every value normalised.
func NormalizeDocument(doc Document) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrValidation)
		}
		n, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// NormalizeValue converts v into the closed document value set.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: non-finite number", ErrValidation)
		}
		return x, nil
	case float32:
		return NormalizeValue(float64(x))
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint64:
		return uintValue(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrValidation, x.String())
		}
		return NormalizeValue(f)
	case time.Time:
		return x.UTC().Truncate(time.Millisecond), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC().Truncate(time.Millisecond), nil
	case Document:
		return normalizeMap(x)
	case map[string]any:
		return normalizeMap(x)
	case []any:
		return normalizeSlice(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, fmt.Errorf("%w: binary values are not supported", ErrValidation)
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return normalizeSlice(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys must be strings, got %s", ErrValidation, rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalizeMap(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return NormalizeValue(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", ErrValidation, v)
}

func uintValue(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: integer %d overflows int64", ErrValidation, u)
	}
	return int64(u), nil
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		n, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func normalizeSlice(s []any) ([]any, error) {
	out := make([]any, len(s))
	for i, v := range s {
		n, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// Lookup resolves a dotted path inside doc. The second result is false when
// any segment is missing or traverses a non-map.
func Lookup(doc map[string]any, field string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(field, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath writes v at a dotted path, creating intermediate maps.
func SetPath(doc map[string]any, field string, v any) {
	segs := strings.Split(field, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// ToFloat returns the numeric value of an int64 or float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// typeRank orders values of different types the way MongoDB does: null,
// numbers, strings, objects, arrays, booleans, dates.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	case map[string]any, Document:
		return 3
	case []any:
		return 4
	case bool:
		return 5
	case time.Time:
		return 6
	}
	return 7
}

// CompareValues orders two normalised values. Values of different types
// compare by type rank; maps and slices compare by their JSON text.
func CompareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case int64:
		if y, ok := b.(int64); ok {
			return cmpInt64(x, y)
		}
		return cmpFloat(float64(x), mustFloat(b))
	case float64:
		return cmpFloat(x, mustFloat(b))
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}

// EqualValues reports whether two normalised values are equal, treating
// int64 and float64 of the same magnitude as equal.
func EqualValues(a, b any) bool {
	return typeRank(a) == typeRank(b) && CompareValues(a, b) == 0
}

func mustFloat(v any) float64 {
	f, _ := ToFloat(v)
	return f
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
