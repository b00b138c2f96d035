// query.go translates store conditions into SQL fragments.
//
// One builder serves every operation, so Find, Count, Update and Delete
// select identical row sets for the same filter. Field paths have already
// passed store.ValidateField and are safe to embed in the JSON path
// literal; values are always bound parameters.

package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
)

// fieldExpr returns the SQL expression addressing field.
func fieldExpr(field string) string {
	if field == store.FieldID {
		return "id"
	}
	return "json_extract(data, '$." + field + "')"
}

// typeExpr returns the json_type expression for field.
func typeExpr(field string) string {
	return "json_type(data, '$." + field + "')"
}

// parseID converts an _id value into the integer row id.
func parseID(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: malformed id %q", store.ErrValidation, x)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: id must be a string, got %T", store.ErrValidation, v)
}

// escapeLike escapes LIKE metacharacters with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// where builds the WHERE clause body and its parameters. No conditions
// yields "1=1".
func where(conds []store.Condition) (string, []any, error) {
	if len(conds) == 0 {
		return "1=1", nil, nil
	}
	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		sql, a, err := condition(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func condition(c store.Condition) (string, []any, error) {
	expr := fieldExpr(c.Field)
	isID := c.Field == store.FieldID

	value := func(v any) (any, error) {
		if isID {
			return parseID(v)
		}
		return param(v)
	}

	switch c.Op {
	case store.OpEq:
		if c.Value == nil {
			return expr + " IS NULL", nil, nil
		}
		v, err := value(c.Value)
		if err != nil {
			return "", nil, err
		}
		return expr + " = ?", []any{v}, nil

	case store.OpNe:
		if c.Value == nil {
			return expr + " IS NOT NULL", nil, nil
		}
		v, err := value(c.Value)
		if err != nil {
			return "", nil, err
		}
		// Missing fields satisfy $ne, matching document-store semantics.
		return "(" + expr + " IS NULL OR " + expr + " != ?)", []any{v}, nil

	case store.OpGt, store.OpGte, store.OpLt, store.OpLte:
		v, err := value(c.Value)
		if err != nil {
			return "", nil, err
		}
		return expr + " " + comparator(c.Op) + " ?", []any{v}, nil

	case store.OpIn:
		items := c.Value.([]any)
		if len(items) == 0 {
			return "0", nil, nil
		}
		args := make([]any, 0, len(items))
		for _, it := range items {
			v, err := value(it)
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
		}
		ph := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
		return expr + " IN (" + ph + ")", args, nil

	case store.OpRegex:
		if isID {
			expr = "CAST(id AS TEXT)"
		}
		pattern := "%" + escapeLike(c.Value.(string)) + "%"
		return expr + ` LIKE ? ESCAPE '\'`, []any{pattern}, nil
	}
	return "", nil, fmt.Errorf("%w: unsupported operator %q", store.ErrValidation, c.Op)
}

func comparator(op store.Op) string {
	switch op {
	case store.OpGt:
		return ">"
	case store.OpGte:
		return ">="
	case store.OpLt:
		return "<"
	default:
		return "<="
	}
}

// orderBy builds the ORDER BY clause. Row id is always the final key so
// ties come back in insertion order.
func orderBy(s store.Sort) string {
	parts := make([]string, 0, len(s)+1)
	for _, f := range s {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, fieldExpr(f.Field)+" "+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// limitOffset builds LIMIT/OFFSET with bound parameters. SQLite needs a
// LIMIT before OFFSET, so skip alone uses LIMIT -1.
func limitOffset(limit, skip int64) (string, []any) {
	switch {
	case limit > 0 && skip > 0:
		return " LIMIT ? OFFSET ?", []any{limit, skip}
	case limit > 0:
		return " LIMIT ?", []any{limit}
	case skip > 0:
		return " LIMIT -1 OFFSET ?", []any{skip}
	}
	return "", nil
}

// columns returns the select list for a projection. Without a projection
// the whole blob is read.
func columns(p store.Projection) string {
	if len(p) == 0 {
		return "id, data"
	}
	cols := []string{"id"}
	for _, f := range p {
		if f == store.FieldID {
			continue
		}
		cols = append(cols, typeExpr(f), fieldExpr(f))
	}
	return strings.Join(cols, ", ")
}
