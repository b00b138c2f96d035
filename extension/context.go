// context.go defines the Context interface for extension access to cmsdb internals.
//
// Separated from extension.go to isolate dependency injection concerns.
// The Context provides a controlled surface area for extensions: they get
// the database facade, the content actions and the loaded configuration,
// and nothing else.
//
// Extensions receive Context during Init(), not at construction, to support
// the two-phase initialisation pattern where extensions register before
// the database is configured.

package extension

import (
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/database"
)

// Context provides extensions controlled access to cmsdb internals.
type Context interface {
	// Database returns the lifecycle manager in front of the backend.
	Database() *database.Database

	// CMS returns the page, site and settings actions.
	CMS() *cms.Service

	// Config returns the effective configuration.
	Config() *config.Config
}

// extContext implements Context.
type extContext struct {
	db  *database.Database
	svc *cms.Service
	cfg *config.Config
}

// NewContext creates a new extension context. The cms service is built
// over db.
func NewContext(db *database.Database, cfg *config.Config) Context {
	return &extContext{
		db:  db,
		svc: cms.New(db),
		cfg: cfg,
	}
}

// Database returns the shared facade.
func (c *extContext) Database() *database.Database {
	return c.db
}

// CMS returns the content actions bound to the shared facade.
func (c *extContext) CMS() *cms.Service {
	return c.svc
}

// Config returns the loaded configuration.
func (c *extContext) Config() *config.Config {
	return c.cfg
}
