package mongo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// filterBSON validates f and converts it into a bson filter. A field with a
// single equality condition is emitted as a plain value so upserts seed it
// into the inserted document.
func filterBSON(f store.Filter) (bson.D, error) {
	conds, err := store.ParseFilter(f)
	if err != nil {
		return nil, err
	}
	return conditionsBSON(conds)
}

func conditionsBSON(conds []store.Condition) (bson.D, error) {
	out := bson.D{}
	// conds arrive ordered by field, so each field's operators are adjacent.
	for i := 0; i < len(conds); {
		field := conds[i].Field
		j := i
		for j < len(conds) && conds[j].Field == field {
			j++
		}
		group := conds[i:j]
		i = j

		if len(group) == 1 && group[0].Op == store.OpEq {
			v, err := operand(field, group[0].Value)
			if err != nil {
				return nil, err
			}
			if _, isDoc := v.(bson.D); !isDoc {
				out = append(out, bson.E{Key: field, Value: v})
				continue
			}
		}

		ops := bson.D{}
		for _, c := range group {
			if c.Op == store.OpRegex {
				// literal, case-insensitive substring, as on SQLite
				ops = append(ops,
					bson.E{Key: string(c.Op), Value: regexp.QuoteMeta(c.Value.(string))},
					bson.E{Key: "$options", Value: "i"},
				)
				continue
			}
			v, err := operand(field, c.Value)
			if err != nil {
				return nil, err
			}
			ops = append(ops, bson.E{Key: string(c.Op), Value: v})
		}
		out = append(out, bson.E{Key: field, Value: ops})
	}
	return out, nil
}

// operand converts a condition value. _id values become ObjectIDs.
func operand(field string, v any) (any, error) {
	if field != store.FieldID || v == nil {
		return toBSON(v), nil
	}
	if items, ok := v.([]any); ok {
		a := make(bson.A, len(items))
		for i, it := range items {
			oid, err := objectID(it)
			if err != nil {
				return nil, err
			}
			a[i] = oid
		}
		return a, nil
	}
	return objectID(v)
}

// sortBSON converts s, appending _id as the final tiebreaker.
func sortBSON(s store.Sort) bson.D {
	d := make(bson.D, 0, len(s)+1)
	hasID := false
	for _, f := range s {
		dir := 1
		if f.Desc {
			dir = -1
		}
		if f.Field == store.FieldID {
			hasID = true
		}
		d = append(d, bson.E{Key: f.Field, Value: dir})
	}
	if !hasID {
		d = append(d, bson.E{Key: store.FieldID, Value: 1})
	}
	return d
}

// projectionBSON converts p. _id is included by the server by default.
func projectionBSON(p store.Projection) bson.D {
	if len(p) == 0 {
		return nil
	}
	d := make(bson.D, 0, len(p))
	for _, f := range p {
		if f != store.FieldID {
			d = append(d, bson.E{Key: f, Value: 1})
		}
	}
	if len(d) == 0 {
		d = append(d, bson.E{Key: store.FieldID, Value: 1})
	}
	return d
}

// patchBSON validates patch and builds the $set document.
func patchBSON(patch store.Patch) (bson.D, error) {
	if patch == nil {
		return nil, fmt.Errorf("%w: nil patch", store.ErrValidation)
	}
	set := bson.D{}
	for _, k := range patch.Keys() {
		if k == store.FieldID {
			return nil, fmt.Errorf("%w: %s cannot be updated", store.ErrValidation, store.FieldID)
		}
		if k == "" || strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("%w: patch field %q", store.ErrValidation, k)
		}
		v, err := store.NormalizeValue(patch[k])
		if err != nil {
			return nil, fmt.Errorf("patch field %q: %w", k, err)
		}
		set = append(set, bson.E{Key: k, Value: toBSON(v)})
	}
	return bson.D{{Key: "$set", Value: set}}, nil
}

// pipelineBSON translates p into a driver pipeline. $count accumulators
// become {$sum: 1}.
func pipelineBSON(p store.Pipeline) (mongo.Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make(mongo.Pipeline, 0, len(p))
	for _, st := range p {
		switch {
		case st.Match != nil:
			f, err := filterBSON(st.Match)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.D{{Key: "$match", Value: f}})
		case st.Group != nil:
			g := bson.D{{Key: store.FieldID, Value: toBSON(st.Group.Key)}}
			for _, a := range st.Group.Accumulators {
				var acc bson.D
				if a.Op == store.AccCount {
					acc = bson.D{{Key: store.AccSum, Value: 1}}
				} else {
					acc = bson.D{{Key: store.AccSum, Value: toBSON(a.Arg)}}
				}
				g = append(g, bson.E{Key: a.Field, Value: acc})
			}
			out = append(out, bson.D{{Key: "$group", Value: g}})
		case st.Sort != nil:
			d := make(bson.D, 0, len(st.Sort))
			for _, f := range st.Sort {
				dir := 1
				if f.Desc {
					dir = -1
				}
				d = append(d, bson.E{Key: f.Field, Value: dir})
			}
			out = append(out, bson.D{{Key: "$sort", Value: d}})
		case st.Limit > 0:
			out = append(out, bson.D{{Key: "$limit", Value: st.Limit}})
		}
	}
	return out, nil
}
