package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpl-au/cmsdb/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Server error codes for a missing index or collection.
const (
	codeNamespaceNotFound = 26
	codeIndexNotFound     = 27
)

// CreateIndex creates an index over the spec keys.
func (h *Handler) CreateIndex(ctx context.Context, coll string, spec store.IndexSpec) (string, error) {
	if len(spec.Keys) == 0 {
		return "", fmt.Errorf("%w: index needs at least one key", store.ErrValidation)
	}
	if err := spec.Keys.Validate(); err != nil {
		return "", err
	}
	c, err := h.collection(coll)
	if err != nil {
		return "", err
	}
	name, err := store.SanitizeCollection(store.IndexName(coll, spec))
	if err != nil {
		return "", err
	}

	keys := make(bson.D, len(spec.Keys))
	for i, k := range spec.Keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		keys[i] = bson.E{Key: k.Field, Value: dir}
	}
	model := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(name).SetUnique(spec.Unique),
	}
	created, err := c.Indexes().CreateOne(ctx, model)
	if err != nil {
		return "", fmt.Errorf("create index %s: %w", name, err)
	}
	return created, nil
}

// DropIndex removes a named index. Dropping a missing index is not an
// error.
func (h *Handler) DropIndex(ctx context.Context, coll, name string) error {
	c, err := h.collection(coll)
	if err != nil {
		return err
	}
	clean, err := store.SanitizeCollection(name)
	if err != nil {
		return err
	}
	_, err = c.Indexes().DropOne(ctx, clean)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == codeIndexNotFound || cmdErr.Code == codeNamespaceNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("drop index %s: %w", clean, err)
	}
	return nil
}

// indexDoc is the listIndexes result shape.
type indexDoc struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

// ListIndexes returns the indexes on coll, excluding the built-in _id
// index.
func (h *Handler) ListIndexes(ctx context.Context, coll string) ([]store.IndexInfo, error) {
	c, err := h.collection(coll)
	if err != nil {
		return nil, err
	}
	cur, err := c.Indexes().List(ctx)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceNotFound {
		return []store.IndexInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list indexes %s: %w", coll, err)
	}
	defer cur.Close(ctx)

	out := []store.IndexInfo{}
	for cur.Next(ctx) {
		var d indexDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("list indexes %s: %w", coll, err)
		}
		if d.Name == "_id_" {
			continue
		}
		info := store.IndexInfo{Name: d.Name, Unique: d.Unique}
		for _, k := range d.Key {
			info.Keys = append(info.Keys, k.Key)
		}
		out = append(out, info)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list indexes %s: %w", coll, err)
	}
	return out, nil
}
