package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
)

// indexField extracts the JSON path of each indexed expression from the
// CREATE INDEX statement recorded in sqlite_master.
var indexField = regexp.MustCompile(`'\$\.([A-Za-z0-9_.]+)'`)

// CreateIndex creates an expression index over json_extract of each key.
func (h *Handler) CreateIndex(ctx context.Context, coll string, spec store.IndexSpec) (string, error) {
	if len(spec.Keys) == 0 {
		return "", fmt.Errorf("%w: index needs at least one key", store.ErrValidation)
	}
	if err := spec.Keys.Validate(); err != nil {
		return "", err
	}
	db, table, err := h.table(ctx, coll)
	if err != nil {
		return "", err
	}
	name, err := store.SanitizeCollection(store.IndexName(coll, spec))
	if err != nil {
		return "", err
	}

	exprs := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		exprs[i] = fieldExpr(k.Field) + " " + dir
	}
	unique := ""
	if spec.Unique {
		unique = "UNIQUE "
	}
	q := `CREATE ` + unique + `INDEX IF NOT EXISTS ` + quoteIdent(name) + ` ON ` + table + ` (` + strings.Join(exprs, ", ") + `)`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return "", fmt.Errorf("create index %s: %w", name, err)
	}
	return name, nil
}

// DropIndex removes a named index. Dropping a missing index is not an
// error.
func (h *Handler) DropIndex(ctx context.Context, coll, name string) error {
	db, _, err := h.table(ctx, coll)
	if err != nil {
		return err
	}
	clean, err := store.SanitizeCollection(name)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DROP INDEX IF EXISTS `+quoteIdent(clean)); err != nil {
		return fmt.Errorf("drop index %s: %w", clean, err)
	}
	return nil
}

// ListIndexes returns the user-created indexes on coll.
func (h *Handler) ListIndexes(ctx context.Context, coll string) ([]store.IndexInfo, error) {
	db, _, err := h.table(ctx, coll)
	if err != nil {
		return nil, err
	}
	name, _ := store.SanitizeCollection(coll)
	rows, err := db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master
		 WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL
		 ORDER BY name`, name)
	if err != nil {
		return nil, fmt.Errorf("list indexes %s: %w", coll, err)
	}
	defer rows.Close()

	out := []store.IndexInfo{}
	for rows.Next() {
		var idx, def string
		if err := rows.Scan(&idx, &def); err != nil {
			return nil, fmt.Errorf("list indexes %s: %w", coll, err)
		}
		info := store.IndexInfo{
			Name:   idx,
			Unique: strings.HasPrefix(strings.ToUpper(def), "CREATE UNIQUE"),
		}
		for _, m := range indexField.FindAllStringSubmatch(def, -1) {
			info.Keys = append(info.Keys, m[1])
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list indexes %s: %w", coll, err)
	}
	return out, nil
}
