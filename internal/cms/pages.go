package cms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

// Section is one block of page content. "title" and "type" are
// conventional; other keys depend on the section type.
type Section map[string]any

// SEO is page metadata for search engines.
type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Page is a routed content page.
type Page struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Route       string     `json:"route"`
	Sections    []Section  `json:"sections"`
	SEO         SEO        `json:"seo"`
	Published   bool       `json:"isPublished"`
	Draft       bool       `json:"isDraft"`
	SiteID      string     `json:"siteId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// PageInput is the caller-supplied part of a new page.
type PageInput struct {
	Title    string
	Route    string
	Sections []Section
	SEO      SEO
	SiteID   string
}

// PageUpdate lists the fields to change; nil fields are left alone.
type PageUpdate struct {
	Title     *string
	Route     *string
	Sections  []Section
	SEO       *SEO
	Published *bool
	Draft     *bool
	SiteID    *string
}

func (u PageUpdate) patch() store.Patch {
	p := store.Patch{}
	if u.Title != nil {
		p["title"] = *u.Title
	}
	if u.Route != nil {
		p["route"] = *u.Route
	}
	if u.Sections != nil {
		p["sections"] = sectionsValue(u.Sections)
	}
	if u.SEO != nil {
		p["seo"] = u.SEO.value()
	}
	if u.Published != nil {
		p["isPublished"] = *u.Published
	}
	if u.Draft != nil {
		p["isDraft"] = *u.Draft
	}
	if u.SiteID != nil {
		p["siteId"] = *u.SiteID
	}
	return p
}

// PageQuery filters ListPages. Zero values mean "any".
type PageQuery struct {
	SiteID    string
	Published *bool
	Draft     *bool
	Limit     int64
	Skip      int64
	// Sort is newest, oldest, title, route or updated (default).
	Sort Sort
}

func (q PageQuery) filter() store.Filter {
	f := store.Filter{}
	if q.SiteID != "" {
		f["siteId"] = q.SiteID
	}
	if q.Published != nil {
		f["isPublished"] = *q.Published
	}
	if q.Draft != nil {
		f["isDraft"] = *q.Draft
	}
	return f
}

// CreatePage stores a new unpublished draft. The route must be unused.
func (s *Service) CreatePage(ctx context.Context, in PageInput) (*Page, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Route) == "" {
		return nil, fmt.Errorf("%w: page title and route are required", ErrInvalidInput)
	}
	existing, err := s.db.FindOne(ctx, CollectionPages, store.Filter{"route": in.Route}, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("check route: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrRouteExists, in.Route)
	}

	doc := store.Document{
		"title":       in.Title,
		"route":       in.Route,
		"sections":    sectionsValue(in.Sections),
		"seo":         in.SEO.value(),
		"isPublished": false,
		"isDraft":     true,
	}
	if in.SiteID != "" {
		doc["siteId"] = in.SiteID
	}
	created, err := s.db.Create(ctx, CollectionPages, doc)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return pageFrom(created), nil
}

// GetPage returns the page with id, or nil.
func (s *Service) GetPage(ctx context.Context, id string) (*Page, error) {
	doc, err := s.db.FindByID(ctx, CollectionPages, id, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return pageFrom(doc), nil
}

// GetPageByRoute returns the page at route, or nil. A non-empty siteID
// restricts the lookup to that site.
func (s *Service) GetPageByRoute(ctx context.Context, route, siteID string) (*Page, error) {
	f := store.Filter{"route": route}
	if siteID != "" {
		f["siteId"] = siteID
	}
	doc, err := s.db.FindOne(ctx, CollectionPages, f, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get page by route: %w", err)
	}
	return pageFrom(doc), nil
}

// ListPages returns pages matching q.
func (s *Service) ListPages(ctx context.Context, q PageQuery) ([]*Page, error) {
	sort, err := q.Sort.resolve(SortUpdated, SortNewest, SortOldest, SortTitle, SortRoute, SortUpdated)
	if err != nil {
		return nil, err
	}
	docs, err := s.db.Find(ctx, CollectionPages, q.filter(), store.FindOptions{
		Limit: q.Limit,
		Skip:  q.Skip,
		Sort:  sort,
	})
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pagesFrom(docs), nil
}

// PageCount counts pages, optionally per site and publication state.
func (s *Service) PageCount(ctx context.Context, siteID string, published *bool) (int64, error) {
	return s.db.Count(ctx, CollectionPages, PageQuery{SiteID: siteID, Published: published}.filter())
}

// UpdatePage applies u. Changing the route checks it against every other
// page. Publishing stamps publishedAt.
func (s *Service) UpdatePage(ctx context.Context, id string, u PageUpdate) (*Page, error) {
	if u.Route != nil {
		if err := s.checkRoute(ctx, id, *u.Route); err != nil {
			return nil, err
		}
	}
	p := u.patch()
	if u.Published != nil && *u.Published {
		p["publishedAt"] = s.timestamp()
	}
	return s.updatePage(ctx, id, p)
}

// SavePageDraft applies u and marks the page as a draft.
func (s *Service) SavePageDraft(ctx context.Context, id string, u PageUpdate) (*Page, error) {
	if u.Route != nil {
		if err := s.checkRoute(ctx, id, *u.Route); err != nil {
			return nil, err
		}
	}
	p := u.patch()
	p["isDraft"] = true
	return s.updatePage(ctx, id, p)
}

// PublishPage marks the page live and no longer a draft.
func (s *Service) PublishPage(ctx context.Context, id string) (*Page, error) {
	return s.updatePage(ctx, id, store.Patch{
		"isPublished": true,
		"isDraft":     false,
		"publishedAt": s.timestamp(),
	})
}

// UnpublishPage takes the page offline. publishedAt is kept.
func (s *Service) UnpublishPage(ctx context.Context, id string) (*Page, error) {
	return s.updatePage(ctx, id, store.Patch{"isPublished": false})
}

// DuplicatePage copies a page as a new draft at "<route>-copy", or
// "<route>-copy-N" when that is taken. An empty title becomes
// "<title> (Copy)".
func (s *Service) DuplicatePage(ctx context.Context, id, title string) (*Page, error) {
	orig, err := s.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}

	route := orig.Route + "-copy"
	for n := 1; ; n++ {
		taken, err := s.db.FindOne(ctx, CollectionPages, store.Filter{"route": route}, store.FindOneOptions{})
		if err != nil {
			return nil, fmt.Errorf("check route: %w", err)
		}
		if taken == nil {
			break
		}
		route = fmt.Sprintf("%s-copy-%d", orig.Route, n)
	}
	if title == "" {
		title = orig.Title + " (Copy)"
	}
	return s.CreatePage(ctx, PageInput{
		Title:    title,
		Route:    route,
		Sections: orig.Sections,
		SEO:      orig.SEO,
		SiteID:   orig.SiteID,
	})
}

// DeletePage removes a page and reports whether it existed.
func (s *Service) DeletePage(ctx context.Context, id string) (bool, error) {
	ok, err := s.db.DeleteByID(ctx, CollectionPages, id)
	if err != nil {
		return false, fmt.Errorf("delete page: %w", err)
	}
	return ok, nil
}

func (s *Service) checkRoute(ctx context.Context, id, route string) error {
	if strings.TrimSpace(route) == "" {
		return fmt.Errorf("%w: page route is required", ErrInvalidInput)
	}
	f := excludeID(id)
	f["route"] = route
	other, err := s.db.FindOne(ctx, CollectionPages, f, store.FindOneOptions{})
	if err != nil {
		return fmt.Errorf("check route: %w", err)
	}
	if other != nil {
		return fmt.Errorf("%w: %s", ErrRouteExists, route)
	}
	return nil
}

func (s *Service) updatePage(ctx context.Context, id string, p store.Patch) (*Page, error) {
	doc, err := s.db.UpdateByID(ctx, CollectionPages, id, p, store.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("update page: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	return pageFrom(doc), nil
}
