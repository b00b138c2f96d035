// Package cms implements the content actions (pages, sites and global
// settings) on top of the database facade.
//
// The package owns the domain rules the persistence layer knows nothing
// about: unique routes and domains, a single default site, and the
// draft/published lifecycle. Duplicate checks run explicitly before
// writing and surface as domain errors rather than store errors.
package cms

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
)

// Collection names.
const (
	CollectionPages    = "pages"
	CollectionSites    = "sites"
	CollectionSettings = "settings"
)

var (
	// ErrRouteExists is returned when another page already uses a route.
	ErrRouteExists = errors.New("a page with this route already exists")
	// ErrDomainExists is returned when another site already uses a domain.
	ErrDomainExists = errors.New("a site with this domain already exists")
	// ErrPageNotFound is returned by page mutations on a missing id.
	ErrPageNotFound = errors.New("page not found")
	// ErrSiteNotFound is returned by site mutations on a missing id.
	ErrSiteNotFound = errors.New("site not found")
	// ErrDefaultSite is returned when deleting the default site.
	ErrDefaultSite = errors.New("cannot delete the default site")
	// ErrSiteHasPages is returned when deleting a site that still owns pages.
	ErrSiteHasPages = errors.New("cannot delete site that has pages")
	// ErrInvalidInput wraps store.ErrValidation for missing required fields.
	ErrInvalidInput = fmt.Errorf("%w: cms", store.ErrValidation)
)

// Store is the subset of the database facade the actions use.
// *database.Database satisfies it.
type Store interface {
	Find(ctx context.Context, coll string, f store.Filter, opts store.FindOptions) ([]store.Document, error)
	FindOne(ctx context.Context, coll string, f store.Filter, opts store.FindOneOptions) (store.Document, error)
	FindByID(ctx context.Context, coll, id string, opts store.FindOneOptions) (store.Document, error)
	Create(ctx context.Context, coll string, doc store.Document) (store.Document, error)
	Update(ctx context.Context, coll string, f store.Filter, patch store.Patch, opts store.UpdateOptions) (int64, error)
	UpdateByID(ctx context.Context, coll, id string, patch store.Patch, opts store.UpdateOptions) (store.Document, error)
	DeleteByID(ctx context.Context, coll, id string) (bool, error)
	Count(ctx context.Context, coll string, f store.Filter) (int64, error)
}

// Service runs content actions against a Store.
type Service struct {
	db  Store
	now func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock sets the time source for publishedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service over db.
func New(db Store, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Sort orders list results. Each list action accepts a subset.
type Sort string

// Sort keys.
const (
	SortNewest  Sort = "newest"
	SortOldest  Sort = "oldest"
	SortTitle   Sort = "title"
	SortRoute   Sort = "route"
	SortName    Sort = "name"
	SortDomain  Sort = "domain"
	SortUpdated Sort = "updated"
)

// resolve returns the sort fields for s, using def when s is empty and
// rejecting keys outside allowed.
func (s Sort) resolve(def Sort, allowed ...Sort) (store.Sort, error) {
	if s == "" {
		s = def
	}
	if !slices.Contains(allowed, s) {
		return nil, fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, s)
	}
	switch s {
	case SortNewest:
		return store.Sort{{Field: store.FieldCreatedAt, Desc: true}}, nil
	case SortOldest:
		return store.Sort{{Field: store.FieldCreatedAt}}, nil
	case SortUpdated:
		return store.Sort{{Field: store.FieldUpdatedAt, Desc: true}}, nil
	}
	// title, route, name and domain sort ascending on the field itself.
	return store.Sort{{Field: string(s)}}, nil
}

// excludeID matches documents other than id.
func excludeID(id string) store.Filter {
	return store.Filter{store.FieldID: store.Filter{"$ne": id}}
}
