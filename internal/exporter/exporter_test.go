package exporter_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/exporter"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
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

func lines(t *testing.T, b []byte) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func TestStream(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	for _, title := range []string{"Home", "About", "Blog"} {
		_, err := db.Create(ctx, "pages", store.Document{"title": title})
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	res, err := exporter.Stream(ctx, &buf, db, "pages", exporter.Options{Batch: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Exported)

	got := lines(t, buf.Bytes())
	require.Len(t, got, 3)
	assert.Contains(t, got[0], `"title":"Home"`, "documents are ordered by _id")
	assert.Contains(t, got[2], `"title":"Blog"`)
	assert.Contains(t, got[0], `"createdAt":{"$date":"`)
}

func TestStream_Filter(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	_, err := db.CreateMany(ctx, "pages", []store.Document{
		{"title": "Home", "isPublished": true},
		{"title": "Draft", "isPublished": false},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	res, err := exporter.Stream(ctx, &buf, db, "pages", exporter.Options{
		Filter: store.Filter{"isPublished": true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Exported)
	assert.NotContains(t, buf.String(), "Draft")
}

func TestDir(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	_, err := db.Create(ctx, "sites", store.Document{"name": "Main"})
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "backup")
	results, err := exporter.Dir(ctx, db, []string{"sites", "pages"}, dst, exporter.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].Exported)
	assert.Equal(t, int64(0), results[1].Exported)
	assert.Equal(t, filepath.Join(dst, "sites.jsonl"), results[0].Path)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"Main"`)
	sum := blake2b.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), results[0].Checksum)

	_, err = exporter.Dir(ctx, db, []string{"sites"}, dst, exporter.Options{})
	assert.ErrorContains(t, err, "file exists")

	_, err = exporter.Dir(ctx, db, []string{"sites"}, dst, exporter.Options{Force: true})
	assert.NoError(t, err)
}
