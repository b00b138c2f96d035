// convert.go maps between typed content records and store documents.

package cms

import (
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

func str(doc store.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func boolean(doc store.Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

// timeOf accepts native times and the ISO strings a schema-mode SQLite
// backend returns for undeclared fields.
func timeOf(doc store.Document, key string) time.Time {
	switch v := doc[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func timePtr(doc store.Document, key string) *time.Time {
	t := timeOf(doc, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func sections(v any) []Section {
	items, _ := v.([]any)
	out := make([]Section, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, Section(m))
		}
	}
	return out
}

func sectionsValue(in []Section) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = map[string]any(s)
	}
	return out
}

func seoOf(v any) SEO {
	m, _ := v.(map[string]any)
	doc := store.Document(m)
	return SEO{
		Title:       str(doc, "title"),
		Description: str(doc, "description"),
		Image:       str(doc, "image"),
	}
}

func (s SEO) value() map[string]any {
	return map[string]any{
		"title":       s.Title,
		"description": s.Description,
		"image":       s.Image,
	}
}

func pageFrom(doc store.Document) *Page {
	if doc == nil {
		return nil
	}
	return &Page{
		ID:          doc.ID(),
		Title:       str(doc, "title"),
		Route:       str(doc, "route"),
		Sections:    sections(doc["sections"]),
		SEO:         seoOf(doc["seo"]),
		Published:   boolean(doc, "isPublished"),
		Draft:       boolean(doc, "isDraft"),
		SiteID:      str(doc, "siteId"),
		CreatedAt:   timeOf(doc, store.FieldCreatedAt),
		UpdatedAt:   timeOf(doc, store.FieldUpdatedAt),
		PublishedAt: timePtr(doc, "publishedAt"),
	}
}

func pagesFrom(docs []store.Document) []*Page {
	out := make([]*Page, len(docs))
	for i, d := range docs {
		out[i] = pageFrom(d)
	}
	return out
}

func siteFrom(doc store.Document) *Site {
	if doc == nil {
		return nil
	}
	return &Site{
		ID:          doc.ID(),
		Name:        str(doc, "name"),
		Domain:      str(doc, "domain"),
		Description: str(doc, "description"),
		Active:      boolean(doc, "isActive"),
		Default:     boolean(doc, "isDefault"),
		CreatedAt:   timeOf(doc, store.FieldCreatedAt),
		UpdatedAt:   timeOf(doc, store.FieldUpdatedAt),
	}
}

func settingsFrom(doc store.Document) *Settings {
	if doc == nil {
		return nil
	}
	return &Settings{
		ID:          doc.ID(),
		MultiSite:   boolean(doc, "multiSiteEnabled"),
		RoutingType: RoutingType(str(doc, "routingType")),
		CreatedAt:   timeOf(doc, store.FieldCreatedAt),
		UpdatedAt:   timeOf(doc, store.FieldUpdatedAt),
	}
}
