package importer_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/exporter"
	"github.com/jpl-au/cmsdb/internal/importer"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(database.Config{
		SQLite: sqlite.Options{Path: filepath.Join(t.TempDir(), "cms.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown(context.Background()) })
	return db
}

func TestDecode(t *testing.T) {
	doc, err := importer.Decode([]byte(`{"_id":"7","views":12,"createdAt":{"$date":"2026-01-02T03:04:05.006Z"},"seo":{"tags":["a"]}}`))
	require.NoError(t, err)
	assert.Equal(t, "7", doc.ID())
	assert.Equal(t, int64(12), doc["views"])
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC), doc["createdAt"])
	assert.Equal(t, map[string]any{"tags": []any{"a"}}, doc["seo"])

	for _, bad := range []string{`[1]`, `{"a":`, `null`, `{"t":{"$date":"yesterday"}}`} {
		_, err := importer.Decode([]byte(bad))
		assert.ErrorIs(t, err, store.ErrValidation, bad)
	}
}

func TestRoundTrip(t *testing.T) {
	src := newDB(t)
	ctx := context.Background()
	created, err := src.Create(ctx, "pages", store.Document{"title": "Home", "route": "/"})
	require.NoError(t, err)
	_, err = src.Create(ctx, "pages", store.Document{"title": "About", "route": "/about"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = exporter.Stream(ctx, &buf, src, "pages", exporter.Options{})
	require.NoError(t, err)

	dst := newDB(t)
	res, err := importer.Stream(ctx, bytes.NewReader(buf.Bytes()), dst, "pages", importer.Options{Batch: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Imported)

	got, err := dst.FindOne(ctx, "pages", store.Filter{"route": "/"}, store.FindOneOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Home", got["title"])
	want, ok := created[store.FieldCreatedAt].(time.Time)
	require.True(t, ok)
	have, ok := got[store.FieldCreatedAt].(time.Time)
	require.True(t, ok, "timestamps survive the round trip as times")
	assert.True(t, want.Equal(have))
}

func TestStream_KeepIDs(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	in := `{"_id":"42","title":"Pricing"}` + "\n\n" + `{"_id":"43","title":"Contact"}` + "\n"

	res, err := importer.Stream(ctx, strings.NewReader(in), db, "pages", importer.Options{KeepIDs: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Imported)

	got, err := db.FindByID(ctx, "pages", "42", store.FindOneOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pricing", got["title"])

	// Re-importing overwrites rather than duplicating.
	_, err = importer.Stream(ctx, strings.NewReader(in), db, "pages", importer.Options{KeepIDs: true})
	require.NoError(t, err)
	n, err := db.Count(ctx, "pages", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = importer.Stream(ctx, strings.NewReader(`{"title":"x"}`), db, "pages", importer.Options{KeepIDs: true})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestStream_DryRun(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	res, err := importer.Stream(ctx, strings.NewReader(`{"a":1}`+"\n"+`{"a":2}`), db, "pages", importer.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Imported)
	assert.True(t, res.DryRun)

	n, err := db.Count(ctx, "pages", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStream_BadLine(t *testing.T) {
	db := newDB(t)
	_, err := importer.Stream(context.Background(), strings.NewReader(`{"a":1}`+"\n"+`oops`), db, "pages", importer.Options{})
	assert.ErrorContains(t, err, "line 2")
}

func TestDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "sites.jsonl"), []byte(`{"name":"Main"}`+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pages.jsonl"), []byte(`{"title":"Home"}`+"\n"+`{"title":"About"}`+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("ignored"), 0644))

	db := newDB(t)
	results, err := importer.Dir(context.Background(), db, src, importer.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "pages", results[0].Collection)
	assert.Equal(t, int64(2), results[0].Imported)
	assert.Equal(t, "sites", results[1].Collection)
}

func TestCollectionFor(t *testing.T) {
	assert.Equal(t, "pages", importer.CollectionFor("/tmp/backup/pages.jsonl"))
	assert.Equal(t, "sites", importer.CollectionFor("sites"))
}
