package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
)

// Create inserts doc and returns it with its new _id.
func (h *Handler) Create(ctx context.Context, coll string, doc store.Document) (store.Document, error) {
	norm, err := store.NormalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return nil, err
	}
	data, err := marshal(norm)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, `INSERT INTO `+table+` (data) VALUES (?)`, data)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	norm[store.FieldID] = strconv.FormatInt(id, 10)
	return norm, nil
}

// CreateMany inserts all docs in one transaction. Any failure rolls back
// every insert.
func (h *Handler) CreateMany(ctx context.Context, coll string, docs []store.Document) ([]store.Document, error) {
	if len(docs) == 0 {
		return []store.Document{}, nil
	}
	norms := make([]store.Document, len(docs))
	bodies := make([]string, len(docs))
	for i, d := range docs {
		n, err := store.NormalizeDocument(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		body, err := marshal(n)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		norms[i], bodies[i] = n, body
	}

	_, table, err := h.table(ctx, coll)
	if err != nil {
		return nil, err
	}
	err = h.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (data) VALUES (?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, body := range bodies {
			res, err := stmt.ExecContext(ctx, body)
			if err != nil {
				return fmt.Errorf("insert document %d into %s: %w", i, coll, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert document %d into %s: %w", i, coll, err)
			}
			norms[i][store.FieldID] = strconv.FormatInt(id, 10)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return norms, nil
}

// normalizePatch validates and normalises an update patch.
func normalizePatch(patch store.Patch) (store.Patch, error) {
	if patch == nil {
		return nil, fmt.Errorf("%w: nil patch", store.ErrValidation)
	}
	out := make(store.Patch, len(patch))
	for k, v := range patch {
		if k == store.FieldID {
			return nil, fmt.Errorf("%w: %s cannot be updated", store.ErrValidation, store.FieldID)
		}
		if k == "" || strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("%w: patch field %q", store.ErrValidation, k)
		}
		n, err := store.NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("patch field %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// apply merges patch into doc. Dotted keys address nested fields.
func apply(doc store.Document, patch store.Patch) {
	for k, v := range patch {
		if strings.Contains(k, ".") {
			store.SetPath(doc, k, v)
			continue
		}
		doc[k] = v
	}
}

type row struct {
	id   int64
	data string
}

// selectRows reads the id and raw blob of every matching row within tx.
func selectRows(ctx context.Context, tx *sql.Tx, table, whereSQL string, args []any, limit string) ([]row, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, data FROM `+table+` WHERE `+whereSQL+` ORDER BY id`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.data); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// rewrite merges patch into a stored blob and writes it back.
func rewrite(ctx context.Context, tx *sql.Tx, table string, r row, patch store.Patch) (store.Document, error) {
	doc, err := unmarshal(r.data)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", r.id, err)
	}
	// Stored values are already in encoded form; re-encoding is a no-op
	// for them and converts the patch values.
	apply(doc, patch)
	data, err := marshal(doc)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, data, r.id); err != nil {
		return nil, fmt.Errorf("update row %d: %w", r.id, err)
	}
	return doc, nil
}

// insertWithID inserts a document, using the explicit row id when id > 0.
func insertWithID(ctx context.Context, tx *sql.Tx, table string, id int64, doc store.Document) (int64, error) {
	data, err := marshal(doc)
	if err != nil {
		return 0, err
	}
	var res sql.Result
	if id > 0 {
		res, err = tx.ExecContext(ctx, `INSERT INTO `+table+` (id, data) VALUES (?, ?)`, id, data)
	} else {
		res, err = tx.ExecContext(ctx, `INSERT INTO `+table+` (data) VALUES (?)`, data)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert insert: %w", err)
	}
	return res.LastInsertId()
}

// idCondition returns the row id of an _id equality condition, if any.
func idCondition(conds []store.Condition) (int64, bool, error) {
	for _, c := range conds {
		if c.Field == store.FieldID && c.Op == store.OpEq && c.Value != nil {
			id, err := parseID(c.Value)
			return id, err == nil, err
		}
	}
	return 0, false, nil
}

// Update merges patch into every matching document and returns the number
// matched. With Upsert and no match, a document seeded from the filter's
// equality conditions is inserted and 1 is returned.
func (h *Handler) Update(ctx context.Context, coll string, filter store.Filter, patch store.Patch, opts store.UpdateOptions) (int64, error) {
	p, err := normalizePatch(patch)
	if err != nil {
		return 0, err
	}
	conds, err := store.ParseFilter(filter)
	if err != nil {
		return 0, err
	}
	whereSQL, args, err := where(conds)
	if err != nil {
		return 0, err
	}
	_, table, err := h.table(ctx, coll)
	if err != nil {
		return 0, err
	}

	var matched int64
	err = h.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := selectRows(ctx, tx, table, whereSQL, args, "")
		if err != nil {
			return fmt.Errorf("select %s: %w", coll, err)
		}
		for _, r := range rows {
			if _, err := rewrite(ctx, tx, table, r, p); err != nil {
				return fmt.Errorf("update %s: %w", coll, err)
			}
		}
		matched = int64(len(rows))
		if matched > 0 || !opts.Upsert {
			return nil
		}

		id, _, err := idCondition(conds)
		if err != nil {
			return err
		}
		seed := store.EqualityFields(conds)
		apply(seed, p)
		if _, err := insertWithID(ctx, tx, table, id, seed); err != nil {
			return fmt.Errorf("upsert %s: %w", coll, err)
		}
		matched = 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

// UpdateByID merges patch into one document and returns the result. It
// returns nil when the id is absent and Upsert is false; with Upsert the
// document is created under the requested id.
func (h *Handler) UpdateByID(ctx context.Context, coll, id string, patch store.Patch, opts store.UpdateOptions) (store.Document, error) {
	rowID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}
	_, table, err := h.table(ctx, coll)
	if err != nil {
		return nil, err
	}

	var out store.Document
	err = h.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := selectRows(ctx, tx, table, "id = ?", []any{rowID}, "")
		if err != nil {
			return fmt.Errorf("select %s/%s: %w", coll, id, err)
		}
		if len(rows) == 1 {
			out, err = rewrite(ctx, tx, table, rows[0], p)
			if err != nil {
				return fmt.Errorf("update %s/%s: %w", coll, id, err)
			}
			return nil
		}
		if !opts.Upsert {
			return nil
		}
		doc := store.Document{}
		apply(doc, p)
		if _, err := insertWithID(ctx, tx, table, rowID, doc); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", coll, id, err)
		}
		out = doc
		return nil
	})
	if err != nil || out == nil {
		return nil, err
	}

	// Round-trip through the stored form so the result matches FindByID.
	data, err := marshal(out)
	if err != nil {
		return nil, err
	}
	res, err := unmarshal(data)
	if err != nil {
		return nil, err
	}
	h.coerc.read(coll, res)
	res[store.FieldID] = strconv.FormatInt(rowID, 10)
	return res, nil
}

// Delete removes every matching document.
func (h *Handler) Delete(ctx context.Context, coll string, filter store.Filter) (int64, error) {
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
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+whereSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll, err)
	}
	return n, nil
}

// DeleteByID removes one document and reports whether it existed.
func (h *Handler) DeleteByID(ctx context.Context, coll, id string) (bool, error) {
	rowID, err := parseID(id)
	if err != nil {
		return false, err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, rowID)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return n > 0, nil
}
