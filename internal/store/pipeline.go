// pipeline.go defines the aggregation subset shared by both backends.
//
// Supported stages: $match, $group (with $sum and $count accumulators),
// $sort and $limit. MongoDB runs the pipeline natively; the relational
// backend pushes a leading $match into SQL and evaluates the rest with
// RunPipeline.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Accumulator operators.
const (
	AccSum   = "$sum"
	AccCount = "$count"
)

// Accumulator computes one output field of a group.
type Accumulator struct {
	Field string
	Op    string
	// Arg is a numeric literal added per document, or "$field" to sum a
	// document field. Unused by $count.
	Arg any
}

// Group buckets documents by Key. Key is nil for a single bucket, "$field"
// to group by a field, or any other literal for a constant bucket.
type Group struct {
	Key          any
	Accumulators []Accumulator
}

// Stage is one pipeline step; exactly one field is set.
type Stage struct {
	Match Filter
	Group *Group
	Sort  Sort
	Limit int64
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// ParsePipeline converts the MongoDB JSON shape, for example
//
//	[{"$match": {"status": "published"}},
//	 {"$group": {"_id": "$siteId", "pages": {"$sum": 1}}},
//	 {"$sort": {"pages": -1}}]
//
// into a Pipeline.
func ParsePipeline(raw []map[string]any) (Pipeline, error) {
	p := make(Pipeline, 0, len(raw))
	for i, st := range raw {
		if len(st) != 1 {
			return nil, fmt.Errorf("%w: stage %d must have exactly one operator", ErrValidation, i)
		}
		for op, body := range st {
			stage, err := parseStage(op, body)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", i, err)
			}
			p = append(p, stage)
		}
	}
	return p, p.Validate()
}

// ParsePipelineJSON parses a JSON array of stages.
func ParsePipelineJSON(data []byte) (Pipeline, error) {
	var raw []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: pipeline: %v", ErrValidation, err)
	}
	return ParsePipeline(raw)
}

func parseStage(op string, body any) (Stage, error) {
	switch op {
	case "$match":
		m, ok := asFilterMap(body)
		if !ok {
			return Stage{}, fmt.Errorf("%w: $match needs an object", ErrValidation)
		}
		return Stage{Match: Filter(m)}, nil
	case "$group":
		m, ok := asFilterMap(body)
		if !ok {
			return Stage{}, fmt.Errorf("%w: $group needs an object", ErrValidation)
		}
		return parseGroup(m)
	case "$sort":
		m, ok := asFilterMap(body)
		if !ok || len(m) == 0 {
			return Stage{}, fmt.Errorf("%w: $sort needs a non-empty object", ErrValidation)
		}
		// JSON objects carry no order; multi-key sorts are applied in
		// field-name order.
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var s Sort
		for _, k := range keys {
			dir, err := NormalizeValue(m[k])
			if err != nil {
				return Stage{}, err
			}
			d, ok := ToFloat(dir)
			if !ok || (d != 1 && d != -1) {
				return Stage{}, fmt.Errorf("%w: $sort direction for %q must be 1 or -1", ErrValidation, k)
			}
			s = append(s, SortField{Field: k, Desc: d < 0})
		}
		return Stage{Sort: s}, nil
	case "$limit":
		n, err := NormalizeValue(body)
		if err != nil {
			return Stage{}, err
		}
		l, ok := n.(int64)
		if !ok || l <= 0 {
			return Stage{}, fmt.Errorf("%w: $limit must be a positive integer", ErrValidation)
		}
		return Stage{Limit: l}, nil
	}
	return Stage{}, fmt.Errorf("%w: unsupported stage %q", ErrValidation, op)
}

func parseGroup(m map[string]any) (Stage, error) {
	key, ok := m[FieldID]
	if !ok {
		return Stage{}, fmt.Errorf("%w: $group needs an _id", ErrValidation)
	}
	key, err := NormalizeValue(key)
	if err != nil {
		return Stage{}, err
	}
	g := &Group{Key: key}

	fields := make([]string, 0, len(m))
	for k := range m {
		if k != FieldID {
			fields = append(fields, k)
		}
	}
	slices.Sort(fields)
	for _, f := range fields {
		spec, ok := asFilterMap(m[f])
		if !ok || len(spec) != 1 {
			return Stage{}, fmt.Errorf("%w: accumulator %q needs one operator", ErrValidation, f)
		}
		for op, arg := range spec {
			a, err := NormalizeValue(arg)
			if err != nil {
				return Stage{}, err
			}
			g.Accumulators = append(g.Accumulators, Accumulator{Field: f, Op: op, Arg: a})
		}
	}
	return Stage{Group: g}, nil
}

// Validate checks that each stage sets exactly one step and that every
// operator is supported.
func (p Pipeline) Validate() error {
	for i, st := range p {
		set := 0
		if st.Match != nil {
			set++
			if _, err := ParseFilter(st.Match); err != nil {
				return fmt.Errorf("stage %d: %w", i, err)
			}
		}
		if st.Group != nil {
			set++
			if err := st.Group.validate(); err != nil {
				return fmt.Errorf("stage %d: %w", i, err)
			}
		}
		if st.Sort != nil {
			set++
			if err := st.Sort.Validate(); err != nil {
				return fmt.Errorf("stage %d: %w", i, err)
			}
		}
		if st.Limit != 0 {
			set++
			if st.Limit < 0 {
				return fmt.Errorf("%w: stage %d: negative limit", ErrValidation, i)
			}
		}
		if set != 1 {
			return fmt.Errorf("%w: stage %d must set exactly one step", ErrValidation, i)
		}
	}
	return nil
}

func (g *Group) validate() error {
	if s, ok := g.Key.(string); ok && strings.HasPrefix(s, "$") {
		if err := ValidateField(s[1:]); err != nil {
			return err
		}
	}
	for _, a := range g.Accumulators {
		if a.Field == "" || strings.HasPrefix(a.Field, "$") {
			return fmt.Errorf("%w: accumulator field %q", ErrValidation, a.Field)
		}
		switch a.Op {
		case AccCount:
		case AccSum:
			if s, ok := a.Arg.(string); ok {
				if !strings.HasPrefix(s, "$") {
					return fmt.Errorf("%w: $sum argument %q must be a number or $field", ErrValidation, s)
				}
				if err := ValidateField(s[1:]); err != nil {
					return err
				}
			} else if _, ok := ToFloat(a.Arg); !ok {
				return fmt.Errorf("%w: $sum argument must be a number or $field", ErrValidation)
			}
		default:
			return fmt.Errorf("%w: unsupported accumulator %q", ErrValidation, a.Op)
		}
	}
	return nil
}

// LeadingMatch splits off a first $match stage so a backend can push it
// into its native query.
func (p Pipeline) LeadingMatch() (Filter, Pipeline) {
	if len(p) > 0 && p[0].Match != nil {
		return p[0].Match, p[1:]
	}
	return nil, p
}

// RunPipeline evaluates p over docs in memory.
func RunPipeline(docs []Document, p Pipeline) ([]Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := docs
	for _, st := range p {
		switch {
		case st.Match != nil:
			conds, _ := ParseFilter(st.Match)
			kept := make([]Document, 0, len(out))
			for _, d := range out {
				if Matches(d, conds) {
					kept = append(kept, d)
				}
			}
			out = kept
		case st.Group != nil:
			out = runGroup(out, st.Group)
		case st.Sort != nil:
			SortDocuments(out, st.Sort)
		case st.Limit > 0:
			if int64(len(out)) > st.Limit {
				out = out[:st.Limit]
			}
		}
	}
	return out, nil
}

type bucket struct {
	doc    Document
	floats map[string]bool
}

func runGroup(docs []Document, g *Group) []Document {
	var order []string
	buckets := map[string]*bucket{}

	for _, d := range docs {
		key := groupKey(d, g.Key)
		id, _ := json.Marshal(key)
		b, ok := buckets[string(id)]
		if !ok {
			b = &bucket{doc: Document{FieldID: key}, floats: map[string]bool{}}
			for _, a := range g.Accumulators {
				b.doc[a.Field] = int64(0)
			}
			buckets[string(id)] = b
			order = append(order, string(id))
		}
		for _, a := range g.Accumulators {
			if a.Op == AccCount {
				b.doc[a.Field] = b.doc[a.Field].(int64) + 1
				continue
			}
			var add any = a.Arg
			if s, ok := a.Arg.(string); ok {
				add, _ = Lookup(d, s[1:])
			}
			b.add(a.Field, add)
		}
	}

	out := make([]Document, 0, len(order))
	for _, k := range order {
		out = append(out, buckets[k].doc)
	}
	return out
}

func (b *bucket) add(field string, v any) {
	switch n := v.(type) {
	case int64:
		if b.floats[field] {
			b.doc[field] = b.doc[field].(float64) + float64(n)
		} else {
			b.doc[field] = b.doc[field].(int64) + n
		}
	case float64:
		if !b.floats[field] {
			b.floats[field] = true
			b.doc[field] = float64(b.doc[field].(int64))
		}
		b.doc[field] = b.doc[field].(float64) + n
	}
}

func groupKey(d Document, key any) any {
	s, ok := key.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return key
	}
	v, _ := Lookup(d, s[1:])
	return v
}

// SortDocuments sorts docs in place by s. Ties keep their input order.
func SortDocuments(docs []Document, s Sort) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		for _, f := range s {
			av, _ := Lookup(a, f.Field)
			bv, _ := Lookup(b, f.Field)
			if n := CompareValues(av, bv); n != 0 {
				if f.Desc {
					return -n
				}
				return n
			}
		}
		return 0
	})
}
