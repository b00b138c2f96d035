package store_test

import (
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter_Empty(t *testing.T) {
	conds, err := store.ParseFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, conds)

	conds, err = store.ParseFilter(store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, conds)
}

func TestParseFilter_Equality(t *testing.T) {
	conds, err := store.ParseFilter(store.Filter{"name": "Alice", "age": 30})
	require.NoError(t, err)
	require.Len(t, conds, 2)

	// Ordered by field name.
	assert.Equal(t, store.Condition{Field: "age", Op: store.OpEq, Value: int64(30)}, conds[0])
	assert.Equal(t, store.Condition{Field: "name", Op: store.OpEq, Value: "Alice"}, conds[1])
}

func TestParseFilter_Operators(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))
	conds, err := store.ParseFilter(store.Filter{
		"age":       map[string]any{"$gte": 18, "$lt": 65},
		"status":    map[string]any{"$in": []string{"draft", "published"}},
		"title":     map[string]any{"$regex": "home"},
		"createdAt": map[string]any{"$gt": when},
	})
	require.NoError(t, err)
	require.Len(t, conds, 5)

	assert.Equal(t, "age", conds[0].Field)
	assert.Equal(t, store.OpGte, conds[0].Op)
	assert.Equal(t, store.OpLt, conds[1].Op)

	assert.Equal(t, "createdAt", conds[2].Field)
	assert.Equal(t, when.UTC().Truncate(time.Millisecond), conds[2].Value)

	assert.Equal(t, []any{"draft", "published"}, conds[3].Value)
	assert.Equal(t, store.OpRegex, conds[4].Op)
}

func TestParseFilter_EmbeddedDocumentEquality(t *testing.T) {
	conds, err := store.ParseFilter(store.Filter{"meta": map[string]any{"lang": "en"}})
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, store.OpEq, conds[0].Op)
	assert.Equal(t, map[string]any{"lang": "en"}, conds[0].Value)
}

func TestParseFilter_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		filter store.Filter
	}{
		{"unknown operator", store.Filter{"age": map[string]any{"$where": "1"}}},
		{"mixed keys", store.Filter{"age": map[string]any{"$gt": 1, "x": 2}}},
		{"top level operator", store.Filter{"$or": []any{}}},
		{"injection in field", store.Filter{"a') OR 1=1 --": 1}},
		{"in needs array", store.Filter{"age": map[string]any{"$in": 5}}},
		{"regex needs string", store.Filter{"age": map[string]any{"$regex": 5}}},
		{"id sub-field", store.Filter{"_id.x": 1}},
		{"unsupported value", store.Filter{"ch": make(chan int)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ParseFilter(tt.filter)
			require.Error(t, err)
			assert.ErrorIs(t, err, store.ErrValidation)
		})
	}
}

func TestMatches(t *testing.T) {
	doc := store.Document{
		"_id":   "1",
		"name":  "Alice",
		"age":   int64(30),
		"score": 9.5,
		"meta":  map[string]any{"lang": "en"},
	}

	tests := []struct {
		name   string
		filter store.Filter
		want   bool
	}{
		{"eq", store.Filter{"name": "Alice"}, true},
		{"eq miss", store.Filter{"name": "Bob"}, false},
		{"int float equal", store.Filter{"age": 30.0}, true},
		{"nested path", store.Filter{"meta.lang": "en"}, true},
		{"gt", store.Filter{"age": map[string]any{"$gt": 29}}, true},
		{"lte", store.Filter{"score": map[string]any{"$lte": 9}}, false},
		{"ne missing field", store.Filter{"nick": map[string]any{"$ne": "x"}}, true},
		{"eq null matches missing", store.Filter{"nick": nil}, true},
		{"in", store.Filter{"name": map[string]any{"$in": []any{"Bob", "Alice"}}}, true},
		{"regex case insensitive", store.Filter{"name": map[string]any{"$regex": "LIC"}}, true},
		{"gt on missing", store.Filter{"nick": map[string]any{"$gt": "a"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds, err := store.ParseFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.Matches(doc, conds))
		})
	}
}

func TestEqualityFields(t *testing.T) {
	conds, err := store.ParseFilter(store.Filter{
		"_id":       "42",
		"route":     "/about",
		"meta.lang": "en",
		"age":       map[string]any{"$gt": 1},
	})
	require.NoError(t, err)

	doc := store.EqualityFields(conds)
	assert.Equal(t, store.Document{
		"route": "/about",
		"meta":  map[string]any{"lang": "en"},
	}, doc)
}
