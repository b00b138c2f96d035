package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jpl-au/cmsdb/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// decodeAll drains cur into normalised documents.
func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]store.Document, error) {
	defer cur.Close(ctx)
	docs := []store.Document{}
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		d, err := fromDocument(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, cur.Err()
}

// Find returns matching documents.
func (h *Handler) Find(ctx context.Context, coll string, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	f, err := filterBSON(filter)
	if err != nil {
		return nil, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}

	fo := options.Find().SetSort(sortBSON(opts.Sort))
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if p := projectionBSON(opts.Projection); p != nil {
		fo.SetProjection(p)
	}

	cur, err := c.Find(ctx, f, fo)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	docs, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	return docs, nil
}

// FindOne returns the first match in _id order, or nil.
func (h *Handler) FindOne(ctx context.Context, coll string, filter store.Filter, opts store.FindOneOptions) (store.Document, error) {
	if err := opts.Projection.Validate(); err != nil {
		return nil, err
	}
	f, err := filterBSON(filter)
	if err != nil {
		return nil, err
	}
	return h.findOne(ctx, coll, f, opts.Projection)
}

func (h *Handler) findOne(ctx context.Context, coll string, f bson.D, p store.Projection) (store.Document, error) {
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	fo := options.FindOne().SetSort(sortBSON(nil))
	if pb := projectionBSON(p); pb != nil {
		fo.SetProjection(pb)
	}
	var m bson.M
	err = c.FindOne(ctx, f, fo).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", coll, err)
	}
	return fromDocument(m)
}

// FindByID returns the document with the given hex id, or nil.
func (h *Handler) FindByID(ctx context.Context, coll, id string, opts store.FindOneOptions) (store.Document, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if err := opts.Projection.Validate(); err != nil {
		return nil, err
	}
	return h.findOne(ctx, coll, bson.D{{Key: store.FieldID, Value: oid}}, opts.Projection)
}

// Count returns the number of matching documents.
func (h *Handler) Count(ctx context.Context, coll string, filter store.Filter) (int64, error) {
	f, err := filterBSON(filter)
	if err != nil {
		return 0, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return 0, err
	}
	n, err := c.CountDocuments(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return n, nil
}

// Exists reports whether any document matches.
func (h *Handler) Exists(ctx context.Context, coll string, filter store.Filter) (bool, error) {
	f, err := filterBSON(filter)
	if err != nil {
		return false, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return false, err
	}
	n, err := c.CountDocuments(ctx, f, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", coll, err)
	}
	return n > 0, nil
}

// Distinct returns the unique non-null values of field, ordered. The
// server unwinds array values.
func (h *Handler) Distinct(ctx context.Context, coll, field string, filter store.Filter) ([]any, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	f, err := filterBSON(filter)
	if err != nil {
		return nil, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	raw, err := c.Distinct(ctx, field, f)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
	}
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := fromBSON(r)
		if err != nil {
			return nil, fmt.Errorf("distinct %s.%s: %w", coll, field, err)
		}
		if v != nil {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, store.CompareValues)
	return out, nil
}

// Create inserts doc and returns it with its new _id.
func (h *Handler) Create(ctx context.Context, coll string, doc store.Document) (store.Document, error) {
	norm, err := store.NormalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	delete(norm, store.FieldID)
	res, err := c.InsertOne(ctx, documentBSON(norm))
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	norm[store.FieldID] = idString(res.InsertedID)
	return norm, nil
}

// CreateMany inserts docs with one ordered InsertMany. MongoDB has no
// rollback outside a replica-set transaction, so documents inserted before
// a failure remain.
func (h *Handler) CreateMany(ctx context.Context, coll string, docs []store.Document) ([]store.Document, error) {
	if len(docs) == 0 {
		return []store.Document{}, nil
	}
	norms := make([]store.Document, len(docs))
	bodies := make([]any, len(docs))
	for i, d := range docs {
		n, err := store.NormalizeDocument(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		delete(n, store.FieldID)
		norms[i], bodies[i] = n, documentBSON(n)
	}
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	res, err := c.InsertMany(ctx, bodies, options.InsertMany().SetOrdered(true))
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	for i, id := range res.InsertedIDs {
		norms[i][store.FieldID] = idString(id)
	}
	return norms, nil
}

func idString(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

// Update applies $set to every match and returns matched plus upserted.
func (h *Handler) Update(ctx context.Context, coll string, filter store.Filter, patch store.Patch, opts store.UpdateOptions) (int64, error) {
	set, err := patchBSON(patch)
	if err != nil {
		return 0, err
	}
	f, err := filterBSON(filter)
	if err != nil {
		return 0, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return 0, err
	}
	res, err := c.UpdateMany(ctx, f, set, options.Update().SetUpsert(opts.Upsert))
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", coll, err)
	}
	return res.MatchedCount + res.UpsertedCount, nil
}

// UpdateByID applies $set to one document and returns the result, or nil
// when absent and Upsert is false.
func (h *Handler) UpdateByID(ctx context.Context, coll, id string, patch store.Patch, opts store.UpdateOptions) (store.Document, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set, err := patchBSON(patch)
	if err != nil {
		return nil, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	fo := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(opts.Upsert)

	var m bson.M
	err = c.FindOneAndUpdate(ctx, bson.D{{Key: store.FieldID, Value: oid}}, set, fo).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	return fromDocument(m)
}

// Delete removes every match.
func (h *Handler) Delete(ctx context.Context, coll string, filter store.Filter) (int64, error) {
	f, err := filterBSON(filter)
	if err != nil {
		return 0, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return 0, err
	}
	res, err := c.DeleteMany(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll, err)
	}
	return res.DeletedCount, nil
}

// DeleteByID removes one document and reports whether it existed.
func (h *Handler) DeleteByID(ctx context.Context, coll, id string) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return false, err
	}
	res, err := c.DeleteOne(ctx, bson.D{{Key: store.FieldID, Value: oid}})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return res.DeletedCount > 0, nil
}

// Aggregate runs the pipeline on the server.
func (h *Handler) Aggregate(ctx context.Context, coll string, pipeline store.Pipeline) ([]store.Document, error) {
	p, err := pipelineBSON(pipeline)
	if err != nil {
		return nil, err
	}
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	cur, err := c.Aggregate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	docs, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	return docs, nil
}
