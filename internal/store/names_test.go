package store_test

import (
	"testing"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCollection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", "users"},
		{"site-pages", "site_pages"},
		{"users; DROP TABLE x", "users__DROP_TABLE_x"},
		{"Menu_Items2", "Menu_Items2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := store.SanitizeCollection(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeCollection_Rejects(t *testing.T) {
	for _, name := range []string{"", "---", "sqlite_master", "SQLite-master"} {
		t.Run(name, func(t *testing.T) {
			_, err := store.SanitizeCollection(name)
			assert.ErrorIs(t, err, store.ErrValidation)
		})
	}
}

func TestValidateField(t *testing.T) {
	for _, f := range []string{"_id", "title", "seo.meta.title", "a1_b2"} {
		assert.NoError(t, store.ValidateField(f), f)
	}
	for _, f := range []string{"", "a..b", ".a", "a.", "a b", "a'", "$gt", "_id.x"} {
		assert.ErrorIs(t, store.ValidateField(f), store.ErrValidation, f)
	}
}

func TestIndexName(t *testing.T) {
	spec := store.IndexSpec{Keys: store.Sort{{Field: "route"}, {Field: "seo.slug"}}}
	assert.Equal(t, "pages_route_seo_slug_idx", store.IndexName("pages", spec))

	spec.Name = "custom"
	assert.Equal(t, "custom", store.IndexName("pages", spec))
}
