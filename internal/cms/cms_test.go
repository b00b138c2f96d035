package cms_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 14, 9, 26, 53, 589_793_238, time.UTC)

func newService(t *testing.T) *cms.Service {
	t.Helper()
	db, err := database.New(database.Config{
		SQLite: sqlite.Options{Path: filepath.Join(t.TempDir(), "cms.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown(context.Background()) })
	return cms.New(db, cms.WithClock(func() time.Time { return fixed }))
}

func ptr[T any](v T) *T { return &v }

func TestCreatePage(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	p, err := s.CreatePage(ctx, cms.PageInput{
		Title:    "Home",
		Route:    "/",
		Sections: []cms.Section{{"type": "hero", "title": "Welcome"}},
		SEO:      cms.SEO{Title: "Home page"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.Published)
	assert.True(t, p.Draft)
	assert.Nil(t, p.PublishedAt)
	assert.False(t, p.CreatedAt.IsZero())
	require.Len(t, p.Sections, 1)
	assert.Equal(t, "hero", p.Sections[0]["type"])
	assert.Equal(t, "Home page", p.SEO.Title)

	got, err := s.GetPageByRoute(ctx, "/", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.CreatePage(ctx, cms.PageInput{Title: "Again", Route: "/"})
	assert.ErrorIs(t, err, cms.ErrRouteExists)

	_, err = s.CreatePage(ctx, cms.PageInput{Title: "", Route: "/x"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestGetPage_Missing(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	p, err := s.GetPage(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = s.UpdatePage(ctx, "999", cms.PageUpdate{Title: ptr("x")})
	assert.ErrorIs(t, err, cms.ErrPageNotFound)
}

func TestPublishLifecycle(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	p, err := s.CreatePage(ctx, cms.PageInput{Title: "About", Route: "/about"})
	require.NoError(t, err)

	pub, err := s.PublishPage(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, pub.Published)
	assert.False(t, pub.Draft)
	require.NotNil(t, pub.PublishedAt)
	assert.True(t, fixed.Truncate(time.Millisecond).Equal(*pub.PublishedAt))

	draft, err := s.SavePageDraft(ctx, p.ID, cms.PageUpdate{Title: ptr("About us")})
	require.NoError(t, err)
	assert.True(t, draft.Draft)
	assert.True(t, draft.Published, "saving a draft leaves the live version up")
	assert.Equal(t, "About us", draft.Title)

	off, err := s.UnpublishPage(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, off.Published)
	assert.NotNil(t, off.PublishedAt)

	n, err := s.PageCount(ctx, "", ptr(true))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpdatePage_Route(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.CreatePage(ctx, cms.PageInput{Title: "A", Route: "/a"})
	require.NoError(t, err)
	_, err = s.CreatePage(ctx, cms.PageInput{Title: "B", Route: "/b"})
	require.NoError(t, err)

	_, err = s.UpdatePage(ctx, a.ID, cms.PageUpdate{Route: ptr("/b")})
	assert.ErrorIs(t, err, cms.ErrRouteExists)

	same, err := s.UpdatePage(ctx, a.ID, cms.PageUpdate{Route: ptr("/a")})
	require.NoError(t, err, "a page may keep its own route")
	assert.Equal(t, "/a", same.Route)

	pub, err := s.UpdatePage(ctx, a.ID, cms.PageUpdate{Published: ptr(true)})
	require.NoError(t, err)
	assert.NotNil(t, pub.PublishedAt)
}

func TestDuplicatePage(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	orig, err := s.CreatePage(ctx, cms.PageInput{
		Title:    "Pricing",
		Route:    "/pricing",
		Sections: []cms.Section{{"type": "table"}},
	})
	require.NoError(t, err)
	_, err = s.PublishPage(ctx, orig.ID)
	require.NoError(t, err)

	c1, err := s.DuplicatePage(ctx, orig.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "/pricing-copy", c1.Route)
	assert.Equal(t, "Pricing (Copy)", c1.Title)
	assert.True(t, c1.Draft)
	assert.False(t, c1.Published)
	assert.Len(t, c1.Sections, 1)

	c2, err := s.DuplicatePage(ctx, orig.ID, "Pricing v2")
	require.NoError(t, err)
	assert.Equal(t, "/pricing-copy-1", c2.Route)
	assert.Equal(t, "Pricing v2", c2.Title)

	_, err = s.DuplicatePage(ctx, "999", "")
	assert.ErrorIs(t, err, cms.ErrPageNotFound)
}

func TestListPages(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	for _, r := range []string{"/c", "/a", "/b"} {
		_, err := s.CreatePage(ctx, cms.PageInput{Title: r, Route: r, SiteID: "1"})
		require.NoError(t, err)
	}
	_, err := s.CreatePage(ctx, cms.PageInput{Title: "other", Route: "/other", SiteID: "2"})
	require.NoError(t, err)

	pages, err := s.ListPages(ctx, cms.PageQuery{SiteID: "1", Sort: cms.SortRoute})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "/a", pages[0].Route)
	assert.Equal(t, "/c", pages[2].Route)

	pages, err = s.ListPages(ctx, cms.PageQuery{Sort: cms.SortRoute, Limit: 2, Skip: 1})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "/b", pages[0].Route)

	_, err = s.ListPages(ctx, cms.PageQuery{Sort: cms.SortDomain})
	assert.ErrorIs(t, err, store.ErrValidation)

	ok, err := s.DeletePage(ctx, pages[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeletePage(ctx, pages[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateSite_FirstIsDefault(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.CreateSite(ctx, cms.SiteInput{Name: "A", Domain: "a.test"})
	require.NoError(t, err)
	assert.True(t, a.Default)
	assert.True(t, a.Active)

	b, err := s.CreateSite(ctx, cms.SiteInput{Name: "B", Domain: "b.test", Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, b.Default)
	assert.False(t, b.Active)

	_, err = s.CreateSite(ctx, cms.SiteInput{Name: "A2", Domain: "a.test"})
	assert.ErrorIs(t, err, cms.ErrDomainExists)

	_, err = s.CreateSite(ctx, cms.SiteInput{Name: "No domain"})
	assert.ErrorIs(t, err, store.ErrValidation)

	n, err := s.SiteCount(ctx, ptr(true))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDefaultSiteSwap(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.CreateSite(ctx, cms.SiteInput{Name: "A", Domain: "a.test"})
	require.NoError(t, err)
	b, err := s.CreateSite(ctx, cms.SiteInput{Name: "B", Domain: "b.test", Default: true})
	require.NoError(t, err)
	assert.True(t, b.Default)

	def, err := s.GetDefaultSite(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, b.ID, def.ID)

	_, err = s.SetDefaultSite(ctx, a.ID)
	require.NoError(t, err)
	defaults, err := s.ListSites(ctx, cms.SiteQuery{Default: ptr(true)})
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, a.ID, defaults[0].ID)

	_, err = s.SetDefaultSite(ctx, "999")
	assert.ErrorIs(t, err, cms.ErrSiteNotFound)

	_, err = s.UpdateSite(ctx, b.ID, cms.SiteUpdate{Default: ptr(true)})
	require.NoError(t, err)
	defaults, err = s.ListSites(ctx, cms.SiteQuery{Default: ptr(true)})
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, b.ID, defaults[0].ID)
}

func TestUpdateSite_Domain(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.CreateSite(ctx, cms.SiteInput{Name: "A", Domain: "a.test"})
	require.NoError(t, err)
	_, err = s.CreateSite(ctx, cms.SiteInput{Name: "B", Domain: "b.test"})
	require.NoError(t, err)

	_, err = s.UpdateSite(ctx, a.ID, cms.SiteUpdate{Domain: ptr("b.test")})
	assert.ErrorIs(t, err, cms.ErrDomainExists)

	up, err := s.UpdateSite(ctx, a.ID, cms.SiteUpdate{Domain: ptr("a.example"), Name: ptr("Alpha")})
	require.NoError(t, err)
	assert.Equal(t, "a.example", up.Domain)
	assert.Equal(t, "Alpha", up.Name)

	got, err := s.GetSiteByDomain(ctx, "a.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	mapping, err := s.SiteDomainMapping(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.example", "b.test"}, []string{mapping[0].Domain, mapping[1].Domain})

	sites, err := s.ListSites(ctx, cms.SiteQuery{})
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "Alpha", sites[0].Name, "sites sort by name by default")
}

func TestDeleteSite_Guards(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	def, err := s.CreateSite(ctx, cms.SiteInput{Name: "A", Domain: "a.test"})
	require.NoError(t, err)
	other, err := s.CreateSite(ctx, cms.SiteInput{Name: "B", Domain: "b.test"})
	require.NoError(t, err)

	_, err = s.DeleteSite(ctx, def.ID)
	assert.ErrorIs(t, err, cms.ErrDefaultSite)

	page, err := s.CreatePage(ctx, cms.PageInput{Title: "B home", Route: "/b", SiteID: other.ID})
	require.NoError(t, err)
	_, err = s.DeleteSite(ctx, other.ID)
	assert.ErrorIs(t, err, cms.ErrSiteHasPages)

	_, err = s.DeletePage(ctx, page.ID)
	require.NoError(t, err)
	ok, err := s.DeleteSite(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteSite(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInitializeDefaultSite(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	site, err := s.InitializeDefaultSite(ctx)
	require.NoError(t, err)
	assert.Equal(t, cms.DefaultSiteName, site.Name)
	assert.Equal(t, cms.DefaultSiteDomain, site.Domain)
	assert.True(t, site.Default)

	again, err := s.InitializeDefaultSite(ctx)
	require.NoError(t, err)
	assert.Equal(t, site.ID, again.ID)

	n, err := s.SiteCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGlobalSettings(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.GetGlobalSettings(ctx)
	require.NoError(t, err)
	assert.False(t, first.MultiSite)
	assert.Equal(t, cms.RoutingPath, first.RoutingType)

	again, err := s.GetGlobalSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "defaults are stored once")

	domain := cms.RoutingDomain
	saved, err := s.SaveGlobalSettings(ctx, cms.SettingsUpdate{MultiSite: ptr(true), RoutingType: &domain})
	require.NoError(t, err)
	assert.Equal(t, first.ID, saved.ID)
	assert.True(t, saved.MultiSite)
	assert.Equal(t, cms.RoutingDomain, saved.RoutingType)

	bad := cms.RoutingType("subdomain")
	_, err = s.SaveGlobalSettings(ctx, cms.SettingsUpdate{RoutingType: &bad})
	assert.ErrorIs(t, err, store.ErrValidation)

	reset, err := s.ResetGlobalSettings(ctx)
	require.NoError(t, err)
	assert.False(t, reset.MultiSite)
	assert.Equal(t, cms.RoutingPath, reset.RoutingType)
}

func TestSaveGlobalSettings_CreatesWhenMissing(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	saved, err := s.SaveGlobalSettings(ctx, cms.SettingsUpdate{MultiSite: ptr(true)})
	require.NoError(t, err)
	assert.True(t, saved.MultiSite)
	assert.Equal(t, cms.RoutingPath, saved.RoutingType)
}
