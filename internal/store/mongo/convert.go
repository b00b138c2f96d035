// convert.go maps between the store value set and bson.

package mongo

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// objectID parses a hex id. Malformed ids are validation errors.
func objectID(v any) (primitive.ObjectID, error) {
	switch x := v.(type) {
	case string:
		oid, err := primitive.ObjectIDFromHex(x)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("%w: malformed id %q", store.ErrValidation, x)
		}
		return oid, nil
	case primitive.ObjectID:
		return x, nil
	}
	return primitive.NilObjectID, fmt.Errorf("%w: id must be a string, got %T", store.ErrValidation, v)
}

// toBSON converts a normalised value. Maps become bson.D with sorted keys
// so stored documents and embedded equality filters have a stable order.
func toBSON(v any) any {
	switch x := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(x)
	case store.Document:
		return toBSON(map[string]any(x))
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d := make(bson.D, 0, len(keys))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: toBSON(x[k])})
		}
		return d
	case []any:
		a := make(bson.A, len(x))
		for i, e := range x {
			a[i] = toBSON(e)
		}
		return a
	}
	return v
}

// documentBSON converts a document body for insertion, dropping any _id.
func documentBSON(doc store.Document) bson.D {
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != store.FieldID {
			body[k] = v
		}
	}
	return toBSON(body).(bson.D)
}

// fromBSON converts a decoded driver value into the store value set.
func fromBSON(v any) (any, error) {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil, nil
	case primitive.ObjectID:
		return x.Hex(), nil
	case primitive.DateTime:
		return x.Time().UTC(), nil
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC(), nil
	case int32:
		return int64(x), nil
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("decimal %s: %w", x, err)
		}
		return f, nil
	case primitive.Regex:
		return x.Pattern, nil
	case primitive.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			c, err := fromBSON(e.Value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", e.Key, err)
			}
			m[e.Key] = c
		}
		return m, nil
	case primitive.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			c, err := fromBSON(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			m[k] = c
		}
		return m, nil
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := fromBSON(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}
	return store.NormalizeValue(v)
}

// fromDocument converts a decoded result into a store.Document.
func fromDocument(m bson.M) (store.Document, error) {
	v, err := fromBSON(m)
	if err != nil {
		return nil, err
	}
	return store.Document(v.(map[string]any)), nil
}
