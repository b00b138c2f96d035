package store_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValue(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 678901234, time.FixedZone("AEST", 10*3600))

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 7, int64(7)},
		{"uint16", uint16(7), int64(7)},
		{"float32", float32(1.5), 1.5},
		{"json int", json.Number("12"), int64(12)},
		{"json float", json.Number("1.25"), 1.25},
		{"time to utc millis", when, when.UTC().Truncate(time.Millisecond)},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"nested", map[string]any{"tags": []int{1}}, map[string]any{"tags": []any{int64(1)}}},
		{"typed map", map[string]int{"a": 1}, map[string]any{"a": int64(1)}},
		{"document", store.Document{"a": 1}, map[string]any{"a": int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.NormalizeValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeValue_Rejects(t *testing.T) {
	for name, v := range map[string]any{
		"nan":       math.NaN(),
		"overflow":  uint64(math.MaxUint64),
		"bytes":     []byte("x"),
		"int keys":  map[int]string{1: "a"},
		"func":      func() {},
		"nested ch": map[string]any{"c": make(chan int)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := store.NormalizeValue(v)
			assert.ErrorIs(t, err, store.ErrValidation)
		})
	}
}

func TestNormalizeDocument_EmptyField(t *testing.T) {
	_, err := store.NormalizeDocument(store.Document{"": 1})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, store.CompareValues(int64(2), 2.0))
	assert.Equal(t, -1, store.CompareValues(int64(1), 1.5))
	assert.Equal(t, 1, store.CompareValues("b", "a"))
	assert.Equal(t, -1, store.CompareValues(nil, int64(0)))
	// Numbers sort before strings.
	assert.Equal(t, -1, store.CompareValues(int64(100), "1"))
	assert.Equal(t, -1, store.CompareValues(false, true))

	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, -1, store.CompareValues(early, early.Add(time.Second)))
}

func TestLookupAndSetPath(t *testing.T) {
	doc := map[string]any{}
	store.SetPath(doc, "seo.meta.title", "Home")
	v, ok := store.Lookup(doc, "seo.meta.title")
	require.True(t, ok)
	assert.Equal(t, "Home", v)

	_, ok = store.Lookup(doc, "seo.missing")
	assert.False(t, ok)
	_, ok = store.Lookup(doc, "seo.meta.title.deeper")
	assert.False(t, ok)
}

func TestParseSort(t *testing.T) {
	s, err := store.ParseSort("title, -updatedAt")
	require.NoError(t, err)
	assert.Equal(t, store.Sort{{Field: "title"}, {Field: "updatedAt", Desc: true}}, s)

	s, err = store.ParseSort("")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = store.ParseSort("bad field")
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestPatchKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, store.Patch{"c": 1, "a": 2, "b": 3}.Keys())
}
