package database

import (
	"context"
	"time"

	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/validate"
)

// call validates, connects, runs fn and logs the outcome. check runs before
// any connection attempt so invalid input never touches the backend.
func call[T any](ctx context.Context, d *Database, ev *log.Builder, check func() error, fn func(store.Handler) (T, error)) (T, error) {
	var zero T
	if check != nil {
		if err := check(); err != nil {
			ev.Write(err)
			return zero, err
		}
	}
	h, err := d.handlerFor(ctx)
	if err != nil {
		ev.Write(err)
		return zero, err
	}
	v, err := fn(h)
	ev.Write(err)
	return v, err
}

func all(checks ...func() error) func() error {
	return func() error {
		for _, c := range checks {
			if err := c(); err != nil {
				return err
			}
		}
		return nil
	}
}

func collection(coll string) func() error {
	return func() error {
		_, err := validate.Collection(coll)
		return err
	}
}

func filter(f store.Filter) func() error {
	return func() error { return validate.Filter(f) }
}

func id(id string) func() error {
	return func() error { return validate.ID(id) }
}

// Find returns matching documents.
func (d *Database) Find(ctx context.Context, coll string, f store.Filter, opts store.FindOptions) ([]store.Document, error) {
	ev := log.Event(source, "find").Collection(coll).Detail("filter", f)
	return call(ctx, d, ev,
		all(collection(coll), filter(f), opts.Validate),
		func(h store.Handler) ([]store.Document, error) {
			docs, err := h.Find(ctx, coll, f, opts)
			ev.Detail("count", len(docs))
			return docs, err
		})
}

// FindOne returns the first match, or nil.
func (d *Database) FindOne(ctx context.Context, coll string, f store.Filter, opts store.FindOneOptions) (store.Document, error) {
	ev := log.Event(source, "find_one").Collection(coll).Detail("filter", f)
	return call(ctx, d, ev,
		all(collection(coll), filter(f), opts.Projection.Validate),
		func(h store.Handler) (store.Document, error) {
			return h.FindOne(ctx, coll, f, opts)
		})
}

// FindByID returns the document with the given id, or nil.
func (d *Database) FindByID(ctx context.Context, coll, docID string, opts store.FindOneOptions) (store.Document, error) {
	ev := log.Event(source, "find_by_id").Collection(coll).ID(docID)
	return call(ctx, d, ev,
		all(collection(coll), id(docID), opts.Projection.Validate),
		func(h store.Handler) (store.Document, error) {
			return h.FindByID(ctx, coll, docID, opts)
		})
}

// Create inserts doc, stamping createdAt and updatedAt unless the caller
// set them, and returns it with its new _id.
func (d *Database) Create(ctx context.Context, coll string, doc store.Document) (store.Document, error) {
	ev := log.Event(source, "create").Collection(coll)
	return call(ctx, d, ev,
		all(collection(coll), func() error { return validate.Document(doc) }),
		func(h store.Handler) (store.Document, error) {
			out, err := h.Create(ctx, coll, d.stampCreate(doc))
			if out != nil {
				ev.ID(out.ID())
			}
			return out, err
		})
}

// CreateMany inserts docs. On SQLite a failure inserts nothing.
func (d *Database) CreateMany(ctx context.Context, coll string, docs []store.Document) ([]store.Document, error) {
	ev := log.Event(source, "create_many").Collection(coll).Detail("count", len(docs))
	return call(ctx, d, ev,
		all(collection(coll), func() error {
			for _, doc := range docs {
				if err := validate.Document(doc); err != nil {
					return err
				}
			}
			return nil
		}),
		func(h store.Handler) ([]store.Document, error) {
			stamped := make([]store.Document, len(docs))
			for i, doc := range docs {
				stamped[i] = d.stampCreate(doc)
			}
			return h.CreateMany(ctx, coll, stamped)
		})
}

// Update merges patch into every match and returns the matched count.
func (d *Database) Update(ctx context.Context, coll string, f store.Filter, patch store.Patch, opts store.UpdateOptions) (int64, error) {
	ev := log.Event(source, "update").
		Collection(coll).
		Detail("filter", f).
		Detail("fields", patch.Keys()).
		Detail("upsert", opts.Upsert)
	return call(ctx, d, ev,
		all(collection(coll), filter(f), func() error { return validate.Patch(patch) }),
		func(h store.Handler) (int64, error) {
			n, err := h.Update(ctx, coll, f, d.stampUpdate(patch), opts)
			ev.Detail("matched", n)
			return n, err
		})
}

// UpdateByID merges patch into one document and returns the result, or
// nil when it does not exist and opts.Upsert is false.
func (d *Database) UpdateByID(ctx context.Context, coll, docID string, patch store.Patch, opts store.UpdateOptions) (store.Document, error) {
	ev := log.Event(source, "update_by_id").
		Collection(coll).
		ID(docID).
		Detail("fields", patch.Keys()).
		Detail("upsert", opts.Upsert)
	return call(ctx, d, ev,
		all(collection(coll), id(docID), func() error { return validate.Patch(patch) }),
		func(h store.Handler) (store.Document, error) {
			return h.UpdateByID(ctx, coll, docID, d.stampUpdate(patch), opts)
		})
}

// Delete removes every match and returns how many were removed.
func (d *Database) Delete(ctx context.Context, coll string, f store.Filter) (int64, error) {
	ev := log.Event(source, "delete").Collection(coll).Detail("filter", f)
	return call(ctx, d, ev,
		all(collection(coll), filter(f)),
		func(h store.Handler) (int64, error) {
			n, err := h.Delete(ctx, coll, f)
			ev.Detail("deleted", n)
			return n, err
		})
}

// DeleteByID removes one document and reports whether it existed.
func (d *Database) DeleteByID(ctx context.Context, coll, docID string) (bool, error) {
	ev := log.Event(source, "delete_by_id").Collection(coll).ID(docID)
	return call(ctx, d, ev,
		all(collection(coll), id(docID)),
		func(h store.Handler) (bool, error) {
			return h.DeleteByID(ctx, coll, docID)
		})
}

// Count returns the number of matches.
func (d *Database) Count(ctx context.Context, coll string, f store.Filter) (int64, error) {
	ev := log.Event(source, "count").Collection(coll).Detail("filter", f)
	return call(ctx, d, ev,
		all(collection(coll), filter(f)),
		func(h store.Handler) (int64, error) {
			return h.Count(ctx, coll, f)
		})
}

// Exists reports whether any document matches.
func (d *Database) Exists(ctx context.Context, coll string, f store.Filter) (bool, error) {
	ev := log.Event(source, "exists").Collection(coll).Detail("filter", f)
	return call(ctx, d, ev,
		all(collection(coll), filter(f)),
		func(h store.Handler) (bool, error) {
			return h.Exists(ctx, coll, f)
		})
}

// Distinct returns the unique values of field among matches.
func (d *Database) Distinct(ctx context.Context, coll, field string, f store.Filter) ([]any, error) {
	ev := log.Event(source, "distinct").Collection(coll).Detail("field", field).Detail("filter", f)
	return call(ctx, d, ev,
		all(collection(coll), filter(f), func() error { return validate.Field(field) }),
		func(h store.Handler) ([]any, error) {
			return h.Distinct(ctx, coll, field, f)
		})
}

// Aggregate runs pipeline over coll.
func (d *Database) Aggregate(ctx context.Context, coll string, p store.Pipeline) ([]store.Document, error) {
	ev := log.Event(source, "aggregate").Collection(coll).Detail("stages", len(p))
	return call(ctx, d, ev,
		all(collection(coll), p.Validate),
		func(h store.Handler) ([]store.Document, error) {
			return h.Aggregate(ctx, coll, p)
		})
}

// stampCreate returns a copy of doc with createdAt and updatedAt set when
// absent.
func (d *Database) stampCreate(doc store.Document) store.Document {
	if !d.timestamps {
		return doc
	}
	out := doc.Clone()
	now := d.timestamp()
	if _, ok := out[store.FieldCreatedAt]; !ok {
		out[store.FieldCreatedAt] = now
	}
	if _, ok := out[store.FieldUpdatedAt]; !ok {
		out[store.FieldUpdatedAt] = now
	}
	return out
}

// stampUpdate returns a copy of patch with updatedAt set when absent.
func (d *Database) stampUpdate(patch store.Patch) store.Patch {
	if !d.timestamps {
		return patch
	}
	out := make(store.Patch, len(patch)+1)
	for k, v := range patch {
		out[k] = v
	}
	if _, ok := out[store.FieldUpdatedAt]; !ok {
		out[store.FieldUpdatedAt] = d.timestamp()
	}
	return out
}

// timestamp returns the clock at millisecond precision, bumped past the
// previous stamp so an update issued in the same millisecond as its create
// still carries a later updatedAt.
func (d *Database) timestamp() any {
	now := d.now().UTC().Truncate(time.Millisecond)
	d.stampMu.Lock()
	defer d.stampMu.Unlock()
	if !now.After(d.lastStamp) {
		now = d.lastStamp.Add(time.Millisecond)
	}
	d.lastStamp = now
	return now
}
