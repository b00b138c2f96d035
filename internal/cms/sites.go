package cms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

// Default site created by InitializeDefaultSite.
const (
	DefaultSiteName        = "Main Site"
	DefaultSiteDomain      = "example.com"
	DefaultSiteDescription = "Default site created automatically"
)

// Site is one domain served by the CMS.
type Site struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"isActive"`
	Default     bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SiteInput is the caller-supplied part of a new site. Active defaults
// to true.
type SiteInput struct {
	Name        string
	Domain      string
	Description string
	Active      *bool
	Default     bool
}

// SiteUpdate lists the fields to change; nil fields are left alone.
type SiteUpdate struct {
	Name        *string
	Domain      *string
	Description *string
	Active      *bool
	Default     *bool
}

func (u SiteUpdate) patch() store.Patch {
	p := store.Patch{}
	if u.Name != nil {
		p["name"] = *u.Name
	}
	if u.Domain != nil {
		p["domain"] = *u.Domain
	}
	if u.Description != nil {
		p["description"] = *u.Description
	}
	if u.Active != nil {
		p["isActive"] = *u.Active
	}
	if u.Default != nil {
		p["isDefault"] = *u.Default
	}
	return p
}

// SiteQuery filters ListSites.
type SiteQuery struct {
	Active  *bool
	Default *bool
	Limit   int64
	Skip    int64
	// Sort is newest, oldest, name (default) or domain.
	Sort Sort
}

// DomainMapping pairs a domain with its site id for request routing.
type DomainMapping struct {
	Domain string `json:"domain"`
	SiteID string `json:"siteId"`
}

// CreateSite stores a new site. The first site always becomes the
// default, and a new default clears the previous one.
func (s *Service) CreateSite(ctx context.Context, in SiteInput) (*Site, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Domain) == "" {
		return nil, fmt.Errorf("%w: site name and domain are required", ErrInvalidInput)
	}
	existing, err := s.db.FindOne(ctx, CollectionSites, store.Filter{"domain": in.Domain}, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("check domain: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDomainExists, in.Domain)
	}

	n, err := s.db.Count(ctx, CollectionSites, nil)
	if err != nil {
		return nil, fmt.Errorf("count sites: %w", err)
	}
	isDefault := n == 0 || in.Default
	if isDefault {
		if err := s.clearDefault(ctx); err != nil {
			return nil, err
		}
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	doc := store.Document{
		"name":      in.Name,
		"domain":    in.Domain,
		"isActive":  active,
		"isDefault": isDefault,
	}
	if in.Description != "" {
		doc["description"] = in.Description
	}
	created, err := s.db.Create(ctx, CollectionSites, doc)
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	return siteFrom(created), nil
}

// GetSite returns the site with id, or nil.
func (s *Service) GetSite(ctx context.Context, id string) (*Site, error) {
	doc, err := s.db.FindByID(ctx, CollectionSites, id, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return siteFrom(doc), nil
}

// GetSiteByDomain returns the site serving domain, or nil.
func (s *Service) GetSiteByDomain(ctx context.Context, domain string) (*Site, error) {
	doc, err := s.db.FindOne(ctx, CollectionSites, store.Filter{"domain": domain}, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get site by domain: %w", err)
	}
	return siteFrom(doc), nil
}

// GetDefaultSite returns the default site, or nil when there are no sites.
func (s *Service) GetDefaultSite(ctx context.Context) (*Site, error) {
	doc, err := s.db.FindOne(ctx, CollectionSites, store.Filter{"isDefault": true}, store.FindOneOptions{})
	if err != nil {
		return nil, fmt.Errorf("get default site: %w", err)
	}
	return siteFrom(doc), nil
}

// ListSites returns sites matching q.
func (s *Service) ListSites(ctx context.Context, q SiteQuery) ([]*Site, error) {
	sort, err := q.Sort.resolve(SortName, SortNewest, SortOldest, SortName, SortDomain)
	if err != nil {
		return nil, err
	}
	f := store.Filter{}
	if q.Active != nil {
		f["isActive"] = *q.Active
	}
	if q.Default != nil {
		f["isDefault"] = *q.Default
	}
	docs, err := s.db.Find(ctx, CollectionSites, f, store.FindOptions{
		Limit: q.Limit,
		Skip:  q.Skip,
		Sort:  sort,
	})
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out := make([]*Site, len(docs))
	for i, d := range docs {
		out[i] = siteFrom(d)
	}
	return out, nil
}

// SiteDomainMapping returns every site's domain and id.
func (s *Service) SiteDomainMapping(ctx context.Context) ([]DomainMapping, error) {
	docs, err := s.db.Find(ctx, CollectionSites, nil, store.FindOptions{
		Projection: store.Projection{"domain"},
	})
	if err != nil {
		return nil, fmt.Errorf("site domain mapping: %w", err)
	}
	out := make([]DomainMapping, len(docs))
	for i, d := range docs {
		out[i] = DomainMapping{Domain: str(d, "domain"), SiteID: d.ID()}
	}
	return out, nil
}

// SiteCount counts sites, optionally by active state.
func (s *Service) SiteCount(ctx context.Context, active *bool) (int64, error) {
	f := store.Filter{}
	if active != nil {
		f["isActive"] = *active
	}
	return s.db.Count(ctx, CollectionSites, f)
}

// UpdateSite applies u. A changed domain must be unused by other sites,
// and making the site default clears the previous default.
func (s *Service) UpdateSite(ctx context.Context, id string, u SiteUpdate) (*Site, error) {
	if u.Domain != nil {
		if strings.TrimSpace(*u.Domain) == "" {
			return nil, fmt.Errorf("%w: site domain is required", ErrInvalidInput)
		}
		f := excludeID(id)
		f["domain"] = *u.Domain
		other, err := s.db.FindOne(ctx, CollectionSites, f, store.FindOneOptions{})
		if err != nil {
			return nil, fmt.Errorf("check domain: %w", err)
		}
		if other != nil {
			return nil, fmt.Errorf("%w: %s", ErrDomainExists, *u.Domain)
		}
	}
	if u.Default != nil && *u.Default {
		if err := s.requireSite(ctx, id); err != nil {
			return nil, err
		}
		if err := s.clearDefault(ctx); err != nil {
			return nil, err
		}
	}
	return s.updateSite(ctx, id, u.patch())
}

// SetDefaultSite makes id the only default site.
func (s *Service) SetDefaultSite(ctx context.Context, id string) (*Site, error) {
	if err := s.requireSite(ctx, id); err != nil {
		return nil, err
	}
	if err := s.clearDefault(ctx); err != nil {
		return nil, err
	}
	return s.updateSite(ctx, id, store.Patch{"isDefault": true})
}

// DeleteSite removes a site. The default site and sites that still own
// pages cannot be deleted.
func (s *Service) DeleteSite(ctx context.Context, id string) (bool, error) {
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return false, err
	}
	if site == nil {
		return false, nil
	}
	if site.Default {
		return false, ErrDefaultSite
	}
	n, err := s.db.Count(ctx, CollectionPages, store.Filter{"siteId": id})
	if err != nil {
		return false, fmt.Errorf("count site pages: %w", err)
	}
	if n > 0 {
		return false, fmt.Errorf("%w: %d pages", ErrSiteHasPages, n)
	}
	ok, err := s.db.DeleteByID(ctx, CollectionSites, id)
	if err != nil {
		return false, fmt.Errorf("delete site: %w", err)
	}
	return ok, nil
}

// InitializeDefaultSite creates the default site when there are no sites
// and otherwise returns the existing default.
func (s *Service) InitializeDefaultSite(ctx context.Context) (*Site, error) {
	n, err := s.db.Count(ctx, CollectionSites, nil)
	if err != nil {
		return nil, fmt.Errorf("count sites: %w", err)
	}
	if n == 0 {
		return s.CreateSite(ctx, SiteInput{
			Name:        DefaultSiteName,
			Domain:      DefaultSiteDomain,
			Description: DefaultSiteDescription,
			Default:     true,
		})
	}
	site, err := s.GetDefaultSite(ctx)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("%w: no default site", ErrSiteNotFound)
	}
	return site, nil
}

func (s *Service) clearDefault(ctx context.Context) error {
	_, err := s.db.Update(ctx, CollectionSites, store.Filter{"isDefault": true},
		store.Patch{"isDefault": false}, store.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("clear default site: %w", err)
	}
	return nil
}

func (s *Service) requireSite(ctx context.Context, id string) error {
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return err
	}
	if site == nil {
		return fmt.Errorf("%w: %s", ErrSiteNotFound, id)
	}
	return nil
}

func (s *Service) updateSite(ctx context.Context, id string, p store.Patch) (*Site, error) {
	doc, err := s.db.UpdateByID(ctx, CollectionSites, id, p, store.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("update site: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, id)
	}
	return siteFrom(doc), nil
}
