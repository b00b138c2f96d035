package database

import (
	"context"
	"fmt"

	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/validate"
)

// CreateIndex creates an index on coll and returns its name.
func (d *Database) CreateIndex(ctx context.Context, coll string, spec store.IndexSpec) (string, error) {
	ev := log.Event(source, "create_index").Collection(coll).Detail("unique", spec.Unique)
	return call(ctx, d, ev,
		all(collection(coll), func() error {
			if len(spec.Keys) == 0 {
				return fmt.Errorf("%w: index needs at least one key", validate.ErrInvalidField)
			}
			if err := spec.Keys.Validate(); err != nil {
				return fmt.Errorf("%w: %w", validate.ErrInvalidField, err)
			}
			return validate.IndexName(spec.Name)
		}),
		func(h store.Handler) (string, error) {
			name, err := h.CreateIndex(ctx, coll, spec)
			ev.Detail("index", name)
			return name, err
		})
}

// DropIndex removes the named index. Dropping a missing index succeeds.
func (d *Database) DropIndex(ctx context.Context, coll, name string) error {
	ev := log.Event(source, "drop_index").Collection(coll).Detail("index", name)
	_, err := call(ctx, d, ev,
		all(collection(coll), func() error {
			if name == "" {
				return fmt.Errorf("%w: empty index name", validate.ErrInvalidField)
			}
			return validate.IndexName(name)
		}),
		func(h store.Handler) (struct{}, error) {
			return struct{}{}, h.DropIndex(ctx, coll, name)
		})
	return err
}

// ListIndexes returns the secondary indexes on coll.
func (d *Database) ListIndexes(ctx context.Context, coll string) ([]store.IndexInfo, error) {
	ev := log.Event(source, "list_indexes").Collection(coll)
	return call(ctx, d, ev, collection(coll),
		func(h store.Handler) ([]store.IndexInfo, error) {
			return h.ListIndexes(ctx, coll)
		})
}

// Checkpoint flushes the write-ahead log. Backends without one return
// store.ErrUnsupported.
func (d *Database) Checkpoint(ctx context.Context) error {
	return d.maintain(ctx, "checkpoint", func(m store.Maintainer) error {
		return m.Checkpoint(ctx)
	})
}

// Vacuum compacts the database file.
func (d *Database) Vacuum(ctx context.Context) error {
	return d.maintain(ctx, "vacuum", func(m store.Maintainer) error {
		return m.Vacuum(ctx)
	})
}

// Backup writes a consistent copy of the database to path. The target
// must not exist.
func (d *Database) Backup(ctx context.Context, path string) error {
	if path == "" {
		err := fmt.Errorf("%w: empty backup path", store.ErrValidation)
		log.Event(source, "backup").Write(err)
		return err
	}
	return d.maintain(ctx, "backup", func(m store.Maintainer) error {
		return m.Backup(ctx, path)
	})
}

func (d *Database) maintain(ctx context.Context, action string, fn func(store.Maintainer) error) error {
	ev := log.Event(source, action)
	_, err := call(ctx, d, ev, nil, func(h store.Handler) (struct{}, error) {
		ev.Detail("backend", h.Backend())
		m, ok := h.(store.Maintainer)
		if !ok {
			return struct{}{}, fmt.Errorf("%w: %s on %s", store.ErrUnsupported, action, h.Backend())
		}
		return struct{}{}, fn(m)
	})
	return err
}
