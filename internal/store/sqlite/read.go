package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"

	"github.com/jpl-au/cmsdb/internal/store"
)

// scanner abstracts sql.Row and sql.Rows, enabling a single scan function
// to handle both single-row and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}

// scanDoc reads one row selected with columns(p) into a document.
func (h *Handler) scanDoc(sc scanner, coll string, p store.Projection) (store.Document, error) {
	fields := projected(p)
	if len(fields) == 0 && len(p) == 0 {
		var id int64
		var data string
		if err := sc.Scan(&id, &data); err != nil {
			return nil, err
		}
		doc, err := unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", id, err)
		}
		h.coerc.read(coll, doc)
		doc[store.FieldID] = strconv.FormatInt(id, 10)
		return doc, nil
	}

	var id int64
	types := make([]sql.NullString, len(fields))
	values := make([]any, len(fields))
	dest := []any{&id}
	for i := range fields {
		dest = append(dest, &types[i], &values[i])
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	doc := store.Document{}
	for i, f := range fields {
		if !types[i].Valid {
			continue // field absent
		}
		v, err := fromSQL(types[i].String, values[i])
		if err != nil {
			return nil, fmt.Errorf("row %d field %s: %w", id, f, err)
		}
		store.SetPath(doc, f, v)
	}
	h.coerc.read(coll, doc)
	doc[store.FieldID] = strconv.FormatInt(id, 10)
	return doc, nil
}

// projected returns the projection without _id, which is always present.
func projected(p store.Projection) []string {
	out := make([]string, 0, len(p))
	for _, f := range p {
		if f != store.FieldID {
			out = append(out, f)
		}
	}
	return out
}

// fromSQL converts a json_extract result using its json_type.
func fromSQL(jsonType string, v any) (any, error) {
	switch jsonType {
	case "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "object", "array":
		return unmarshalValue(asText(v))
	case "integer":
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
		return strconv.ParseInt(asText(v), 10, 64)
	case "real":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
		return strconv.ParseFloat(asText(v), 64)
	}
	return asText(v), nil
}

func asText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// Find returns matching documents.
func (h *Handler) Find(ctx context.Context, coll string, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	conds, err := store.ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return nil, err
	}
	whereSQL, args, err := where(conds)
	if err != nil {
		return nil, err
	}
	lim, limArgs := limitOffset(opts.Limit, opts.Skip)
	q := `SELECT ` + columns(opts.Projection) + ` FROM ` + table + ` WHERE ` + whereSQL + orderBy(opts.Sort) + lim

	rows, err := db.QueryContext(ctx, q, append(args, limArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		d, err := h.scanDoc(rows, coll, opts.Projection)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", coll, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	return docs, nil
}

// FindOne returns the first document in _id order, or nil.
func (h *Handler) FindOne(ctx context.Context, coll string, filter store.Filter, opts store.FindOneOptions) (store.Document, error) {
	docs, err := h.Find(ctx, coll, filter, store.FindOptions{Limit: 1, Projection: opts.Projection})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// FindByID returns the document with the given id, or nil.
func (h *Handler) FindByID(ctx context.Context, coll, id string, opts store.FindOneOptions) (store.Document, error) {
	if _, err := parseID(id); err != nil {
		return nil, err
	}
	return h.FindOne(ctx, coll, store.Filter{store.FieldID: id}, opts)
}

// Count returns the number of matching documents.
func (h *Handler) Count(ctx context.Context, coll string, filter store.Filter) (int64, error) {
	conds, err := store.ParseFilter(filter)
	if err != nil {
		return 0, err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return 0, err
	}
	whereSQL, args, err := where(conds)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE `+whereSQL, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return n, nil
}

// Exists reports whether any document matches.
func (h *Handler) Exists(ctx context.Context, coll string, filter store.Filter) (bool, error) {
	conds, err := store.ParseFilter(filter)
	if err != nil {
		return false, err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return false, err
	}
	whereSQL, args, err := where(conds)
	if err != nil {
		return false, err
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE `+whereSQL+` LIMIT 1`, args...).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", coll, err)
	}
	return true, nil
}

// Distinct returns the unique non-null values of field, ordered.
// Arrays are treated as single values rather than unwound.
func (h *Handler) Distinct(ctx context.Context, coll, field string, filter store.Filter) ([]any, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	conds, err := store.ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return nil, err
	}
	whereSQL, args, err := where(conds)
	if err != nil {
		return nil, err
	}

	var q string
	if field == store.FieldID {
		q = `SELECT DISTINCT 'integer', CAST(id AS TEXT) FROM ` + table + ` WHERE ` + whereSQL
	} else {
		q = `SELECT DISTINCT ` + typeExpr(field) + `, ` + fieldExpr(field) + ` FROM ` + table + ` WHERE ` + whereSQL
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
	}
	defer rows.Close()

	out := []any{}
	seen := map[string]bool{}
	for rows.Next() {
		var typ sql.NullString
		var raw any
		if err := rows.Scan(&typ, &raw); err != nil {
			return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
		}
		if !typ.Valid || typ.String == "null" {
			continue
		}
		if field == store.FieldID {
			out = append(out, asText(raw))
			continue
		}
		v, err := fromSQL(typ.String, raw)
		if err != nil {
			return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
		}
		v = h.coerc.readValue(coll, field, v)
		// Coercion can fold distinct stored values together (1 and true).
		key := fmt.Sprintf("%T:%v", v, v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
	}
	sortValues(out)
	return out, nil
}

// Aggregate pushes a leading $match into SQL and evaluates the remaining
// stages in memory.
func (h *Handler) Aggregate(ctx context.Context, coll string, pipeline store.Pipeline) ([]store.Document, error) {
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	match, rest := pipeline.LeadingMatch()
	docs, err := h.Find(ctx, coll, match, store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	return store.RunPipeline(docs, rest)
}

func sortValues(vs []any) {
	slices.SortStableFunc(vs, store.CompareValues)
}
