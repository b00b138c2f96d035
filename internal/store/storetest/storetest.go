// Package storetest provides the behavioural contract every store.Handler
// must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewHandler returns a connected handler on an empty database. The
// handler is disconnected by the caller's t.Cleanup.
type NewHandler func(t *testing.T) store.Handler

// Run executes the contract suite against handlers from newHandler.
func Run(t *testing.T, newHandler NewHandler) {
	tests := []struct {
		name string
		fn   func(t *testing.T, h store.Handler)
	}{
		{"CreateAndFindByID", testCreateAndFindByID},
		{"UserLifecycle", testUserLifecycle},
		{"EmptyCollection", testEmptyCollection},
		{"CreateManyDistinctIDs", testCreateManyDistinctIDs},
		{"FilterOperators", testFilterOperators},
		{"FindCountAgree", testFindCountAgree},
		{"SortLimitSkip", testSortLimitSkip},
		{"Projection", testProjection},
		{"Exists", testExists},
		{"Distinct", testDistinct},
		{"UpdateIdempotent", testUpdateIdempotent},
		{"UpdateNested", testUpdateNested},
		{"Upsert", testUpsert},
		{"UpdateByIDMissing", testUpdateByIDMissing},
		{"Delete", testDelete},
		{"MalformedID", testMalformedID},
		{"InvalidInput", testInvalidInput},
		{"Aggregate", testAggregate},
		{"Indexes", testIndexes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newHandler(t))
		})
	}
}

func seedPages(t *testing.T, h store.Handler, coll string) []store.Document {
	t.Helper()
	docs := []store.Document{
		{"title": "Home", "route": "/", "status": "published", "views": int64(120), "meta": map[string]any{"lang": "en"}},
		{"title": "About", "route": "/about", "status": "published", "views": int64(45), "meta": map[string]any{"lang": "en"}},
		{"title": "Contact", "route": "/contact", "status": "draft", "views": int64(7), "meta": map[string]any{"lang": "fr"}},
		{"title": "Blog", "route": "/blog", "status": "draft", "views": int64(300)},
	}
	created, err := h.CreateMany(context.Background(), coll, docs)
	require.NoError(t, err)
	require.Len(t, created, len(docs))
	return created
}

func titles(docs []store.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["title"].(string)
	}
	return out
}

func testCreateAndFindByID(t *testing.T, h store.Handler) {
	ctx := context.Background()
	joined := time.Date(2024, 3, 1, 12, 30, 0, 250*int(time.Millisecond), time.UTC)

	created, err := h.Create(ctx, "users", store.Document{
		"name":   "Alice",
		"age":    int64(30),
		"score":  float64(9.5),
		"active": true,
		"joined": joined,
		"tags":   []any{"admin", "editor"},
		"prefs":  map[string]any{"theme": "dark"},
		"note":   nil,
	})
	require.NoError(t, err)
	id := created.ID()
	require.NotEmpty(t, id)

	got, err := h.FindByID(ctx, "users", id, store.FindOneOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID())
	assert.Equal(t, "Alice", got["name"])
	assert.Equal(t, int64(30), got["age"])
	assert.Equal(t, 9.5, got["score"])
	assert.Equal(t, true, got["active"])
	require.IsType(t, time.Time{}, got["joined"])
	assert.True(t, joined.Equal(got["joined"].(time.Time)), "joined = %v", got["joined"])
	assert.Equal(t, []any{"admin", "editor"}, got["tags"])
	assert.Equal(t, map[string]any{"theme": "dark"}, got["prefs"])
	v, ok := got["note"]
	assert.True(t, ok, "explicit null field should be kept")
	assert.Nil(t, v)
}

func testUserLifecycle(t *testing.T, h store.Handler) {
	ctx := context.Background()

	alice, err := h.Create(ctx, "users", store.Document{"name": "Alice", "age": int64(30)})
	require.NoError(t, err)

	n, err := h.Update(ctx, "users", store.Filter{"name": "Alice"}, store.Patch{"age": int64(31)}, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := h.Find(ctx, "users", store.Filter{"age": map[string]any{"$gte": int64(31)}}, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID(), found[0].ID())
	assert.Equal(t, int64(31), found[0]["age"])

	ok, err := h.DeleteByID(ctx, "users", alice.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := h.FindByID(ctx, "users", alice.ID(), store.FindOneOptions{})
	require.NoError(t, err)
	assert.Nil(t, gone)

	ok, err = h.DeleteByID(ctx, "users", alice.ID())
	require.NoError(t, err)
	assert.False(t, ok, "second delete should report nothing removed")
}

func testEmptyCollection(t *testing.T, h store.Handler) {
	ctx := context.Background()

	n, err := h.Count(ctx, "nothing_here", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := h.Find(ctx, "nothing_here", store.Filter{}, store.FindOptions{})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)

	one, err := h.FindOne(ctx, "nothing_here", nil, store.FindOneOptions{})
	require.NoError(t, err)
	assert.Nil(t, one)

	vals, err := h.Distinct(ctx, "nothing_here", "title", nil)
	require.NoError(t, err)
	assert.Empty(t, vals)

	removed, err := h.Delete(ctx, "nothing_here", store.Filter{})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func testCreateManyDistinctIDs(t *testing.T, h store.Handler) {
	created := seedPages(t, h, "pages")
	seen := map[string]bool{}
	for _, d := range created {
		id := d.ID()
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	empty, err := h.CreateMany(context.Background(), "pages", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testFilterOperators(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")
	byViews := store.FindOptions{Sort: store.Sort{{Field: "views"}}}

	tests := []struct {
		name   string
		filter store.Filter
		want   []string
	}{
		{"eq", store.Filter{"status": "draft"}, []string{"Contact", "Blog"}},
		{"ne includes missing", store.Filter{"meta.lang": map[string]any{"$ne": "en"}}, []string{"Contact", "Blog"}},
		{"gt", store.Filter{"views": map[string]any{"$gt": int64(45)}}, []string{"Home", "Blog"}},
		{"gte lte", store.Filter{"views": map[string]any{"$gte": int64(7), "$lte": int64(45)}}, []string{"Contact", "About"}},
		{"lt", store.Filter{"views": map[string]any{"$lt": int64(10)}}, []string{"Contact"}},
		{"in", store.Filter{"route": map[string]any{"$in": []any{"/", "/blog", "/missing"}}}, []string{"Home", "Blog"}},
		{"empty in", store.Filter{"route": map[string]any{"$in": []any{}}}, []string{}},
		{"regex", store.Filter{"title": map[string]any{"$regex": "o"}}, []string{"Contact", "About", "Home", "Blog"}},
		{"regex ignores case", store.Filter{"title": map[string]any{"$regex": "HOME"}}, []string{"Home"}},
		{"regex lower", store.Filter{"title": map[string]any{"$regex": "home"}}, []string{"Home"}},
		{"regex is literal", store.Filter{"title": map[string]any{"$regex": "h.me"}}, []string{}},
		{"regex on route", store.Filter{"route": map[string]any{"$regex": "/ab"}}, []string{"About"}},
		{"nested", store.Filter{"meta.lang": "fr"}, []string{"Contact"}},
		{"and", store.Filter{"status": "published", "views": map[string]any{"$gt": int64(100)}}, []string{"Home"}},
		{"missing field", store.Filter{"nope": "x"}, []string{}},
		{"null matches missing", store.Filter{"meta": nil}, []string{"Blog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := h.Find(ctx, "pages", tt.filter, byViews)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(docs))
		})
	}
}

func testFindCountAgree(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	filters := []store.Filter{
		nil,
		{"status": "published"},
		{"views": map[string]any{"$gte": int64(45)}},
		{"meta.lang": "en", "status": "published"},
		{"title": map[string]any{"$ne": "Home"}},
	}
	for i, f := range filters {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			docs, err := h.Find(ctx, "pages", f, store.FindOptions{})
			require.NoError(t, err)
			n, err := h.Count(ctx, "pages", f)
			require.NoError(t, err)
			assert.Equal(t, int64(len(docs)), n)
		})
	}
}

func testSortLimitSkip(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	docs, err := h.Find(ctx, "pages", nil, store.FindOptions{Sort: store.Sort{{Field: "views", Desc: true}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Blog", "Home", "About", "Contact"}, titles(docs))

	docs, err = h.Find(ctx, "pages", nil, store.FindOptions{Sort: store.Sort{{Field: "title"}}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"About", "Blog"}, titles(docs))

	docs, err = h.Find(ctx, "pages", nil, store.FindOptions{Sort: store.Sort{{Field: "title"}}, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Blog", "Contact"}, titles(docs))

	docs, err = h.Find(ctx, "pages", nil, store.FindOptions{Sort: store.Sort{{Field: "title"}}, Skip: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Home"}, titles(docs))

	docs, err = h.Find(ctx, "pages", nil, store.FindOptions{
		Sort: store.Sort{{Field: "status"}, {Field: "title", Desc: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact", "Blog", "Home", "About"}, titles(docs))

	_, err = h.Find(ctx, "pages", nil, store.FindOptions{Limit: -1})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func testProjection(t *testing.T, h store.Handler) {
	ctx := context.Background()
	created := seedPages(t, h, "pages")

	got, err := h.FindByID(ctx, "pages", created[0].ID(), store.FindOneOptions{
		Projection: store.Projection{"title", "meta.lang"},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.Document{
		"_id":   created[0].ID(),
		"title": "Home",
		"meta":  map[string]any{"lang": "en"},
	}, got)

	got, err = h.FindByID(ctx, "pages", created[3].ID(), store.FindOneOptions{
		Projection: store.Projection{"title", "meta.lang"},
	})
	require.NoError(t, err)
	assert.Equal(t, store.Document{"_id": created[3].ID(), "title": "Blog"}, got)
}

func testExists(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	ok, err := h.Exists(ctx, "pages", store.Filter{"route": "/about"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Exists(ctx, "pages", store.Filter{"route": "/nowhere"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDistinct(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	vals, err := h.Distinct(ctx, "pages", "status", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"draft", "published"}, vals)

	vals, err = h.Distinct(ctx, "pages", "meta.lang", store.Filter{"status": "published"})
	require.NoError(t, err)
	assert.Equal(t, []any{"en"}, vals)

	vals, err = h.Distinct(ctx, "pages", "views", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), int64(45), int64(120), int64(300)}, vals)
}

func testUpdateIdempotent(t *testing.T, h store.Handler) {
	ctx := context.Background()
	created := seedPages(t, h, "pages")
	patch := store.Patch{"status": "archived", "views": int64(2)}
	filter := store.Filter{"status": "draft"}

	n, err := h.Update(ctx, "pages", filter, patch, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := h.FindByID(ctx, "pages", created[2].ID(), store.FindOneOptions{})
	require.NoError(t, err)

	n, err = h.Update(ctx, "pages", store.Filter{"status": "archived"}, patch, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "matched count includes unchanged documents")

	second, err := h.FindByID(ctx, "pages", created[2].ID(), store.FindOneOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n, err = h.Update(ctx, "pages", store.Filter{"status": "gone"}, patch, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUpdateNested(t *testing.T, h store.Handler) {
	ctx := context.Background()
	created := seedPages(t, h, "pages")

	got, err := h.UpdateByID(ctx, "pages", created[0].ID(), store.Patch{"meta.lang": "de", "meta.author": "bob"}, store.UpdateOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created[0].ID(), got.ID())
	assert.Equal(t, map[string]any{"lang": "de", "author": "bob"}, got["meta"])
	assert.Equal(t, "Home", got["title"], "unpatched fields are kept")

	again, err := h.FindByID(ctx, "pages", created[0].ID(), store.FindOneOptions{})
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func testUpsert(t *testing.T, h store.Handler) {
	ctx := context.Background()

	n, err := h.Update(ctx, "settings", store.Filter{"key": "global"}, store.Patch{"theme": "light"}, store.UpdateOptions{Upsert: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	doc, err := h.FindOne(ctx, "settings", store.Filter{"key": "global"}, store.FindOneOptions{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "light", doc["theme"])

	n, err = h.Update(ctx, "settings", store.Filter{"key": "global"}, store.Patch{"theme": "dark"}, store.UpdateOptions{Upsert: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := h.Count(ctx, "settings", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "second upsert updates rather than inserts")
}

func testUpdateByIDMissing(t *testing.T, h store.Handler) {
	ctx := context.Background()
	created := seedPages(t, h, "pages")

	ok, err := h.DeleteByID(ctx, "pages", created[1].ID())
	require.NoError(t, err)
	require.True(t, ok)

	got, err := h.UpdateByID(ctx, "pages", created[1].ID(), store.Patch{"title": "x"}, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testDelete(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	n, err := h.Delete(ctx, "pages", store.Filter{"status": "draft"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := h.Count(ctx, "pages", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)

	n, err = h.Delete(ctx, "pages", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func testMalformedID(t *testing.T, h store.Handler) {
	ctx := context.Background()

	_, err := h.FindByID(ctx, "pages", "not-an-id", store.FindOneOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = h.DeleteByID(ctx, "pages", "not-an-id")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = h.UpdateByID(ctx, "pages", "not-an-id", store.Patch{"a": "b"}, store.UpdateOptions{})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func testInvalidInput(t *testing.T, h store.Handler) {
	ctx := context.Background()

	_, err := h.Find(ctx, "", nil, store.FindOptions{})
	assert.ErrorIs(t, err, store.ErrValidation, "empty collection")

	_, err = h.Find(ctx, "sqlite_master", nil, store.FindOptions{})
	assert.ErrorIs(t, err, store.ErrValidation, "reserved collection")

	_, err = h.Find(ctx, "pages", store.Filter{"$where": "1"}, store.FindOptions{})
	assert.ErrorIs(t, err, store.ErrValidation, "top-level operator")

	_, err = h.Find(ctx, "pages", store.Filter{"views": map[string]any{"$near": 1}}, store.FindOptions{})
	assert.ErrorIs(t, err, store.ErrValidation, "unknown operator")

	_, err = h.Distinct(ctx, "pages", "bad field", nil)
	assert.ErrorIs(t, err, store.ErrValidation, "bad distinct field")

	_, err = h.Update(ctx, "pages", nil, store.Patch{"_id": "x"}, store.UpdateOptions{})
	assert.ErrorIs(t, err, store.ErrValidation, "patch touches _id")
}

func testAggregate(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	p, err := store.ParsePipelineJSON([]byte(`[
		{"$match": {"views": {"$gt": 5}}},
		{"$group": {"_id": "$status", "pages": {"$sum": 1}, "views": {"$sum": "$views"}}},
		{"$sort": {"views": -1}}
	]`))
	require.NoError(t, err)

	out, err := h.Aggregate(ctx, "pages", p)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "draft", out[0]["_id"])
	assert.Equal(t, int64(2), out[0]["pages"])
	assert.Equal(t, int64(307), out[0]["views"])
	assert.Equal(t, "published", out[1]["_id"])
	assert.Equal(t, int64(165), out[1]["views"])

	p, err = store.ParsePipelineJSON([]byte(`[{"$group": {"_id": null, "n": {"$count": {}}}}]`))
	require.NoError(t, err)
	out, err = h.Aggregate(ctx, "pages", p)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0]["_id"])
	assert.Equal(t, int64(4), out[0]["n"])

	p, err = store.ParsePipelineJSON([]byte(`[{"$sort": {"views": 1}}, {"$limit": 2}]`))
	require.NoError(t, err)
	out, err = h.Aggregate(ctx, "pages", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact", "About"}, titles(out))
}

func testIndexes(t *testing.T, h store.Handler) {
	ctx := context.Background()
	seedPages(t, h, "pages")

	name, err := h.CreateIndex(ctx, "pages", store.IndexSpec{Keys: store.Sort{{Field: "route"}}, Unique: true})
	require.NoError(t, err)
	assert.Equal(t, "pages_route_idx", name)

	_, err = h.CreateIndex(ctx, "pages", store.IndexSpec{Keys: store.Sort{{Field: "route"}}, Unique: true})
	require.NoError(t, err, "creating an existing index is a no-op")

	list, err := h.ListIndexes(ctx, "pages")
	require.NoError(t, err)
	var found *store.IndexInfo
	for i := range list {
		if list[i].Name == name {
			found = &list[i]
		}
	}
	require.NotNil(t, found, "index %s not listed in %v", name, list)
	assert.Equal(t, []string{"route"}, found.Keys)
	assert.True(t, found.Unique)

	_, err = h.Create(ctx, "pages", store.Document{"title": "Dup", "route": "/"})
	assert.Error(t, err, "unique index rejects duplicate route")

	require.NoError(t, h.DropIndex(ctx, "pages", name))
	list, err = h.ListIndexes(ctx, "pages")
	require.NoError(t, err)
	for _, idx := range list {
		assert.NotEqual(t, name, idx.Name)
	}

	_, err = h.CreateIndex(ctx, "pages", store.IndexSpec{})
	assert.ErrorIs(t, err, store.ErrValidation)
}
