// init.go implements the "cmsdb init" command for database initialisation.
//
// Separated from extension.go to isolate init-specific logic. Init is the
// only command that seeds content: it connects, creates the indexes the
// CMS actions rely on, and ensures a default site and global settings
// exist.
//
// Design: Init is idempotent. Indexes use IF NOT EXISTS semantics on both
// backends and the seeding actions only create what is missing, so running
// init against a populated database changes nothing.

package core

import (
	"context"
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/spf13/cobra"
)

// defaultIndexes are created by init.
var defaultIndexes = []struct {
	coll string
	spec store.IndexSpec
}{
	{cms.CollectionPages, store.IndexSpec{Keys: store.Sort{{Field: "route"}}}},
	{cms.CollectionPages, store.IndexSpec{Keys: store.Sort{{Field: "siteId"}}}},
	{cms.CollectionSites, store.IndexSpec{Keys: store.Sort{{Field: "domain"}}, Unique: true}},
}

// initResult is the JSON output of init.
type initResult struct {
	Backend  string        `json:"backend"`
	Indexes  []string      `json:"indexes"`
	Site     *cms.Site     `json:"site"`
	Settings *cms.Settings `json:"settings"`
	Config   string        `json:"config,omitempty"`
}

func (e *Extension) newInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Initialise the CMS database",
		Long: `Connects to the configured backend, creates the indexes used by the
content actions, and ensures a default site and global settings exist.

Running init again is safe: nothing that already exists is changed.

Use --local to also write .cmsdb/config.yaml in the current directory,
pinning the backend for this project:
  cmsdb init --local`,
		RunE: e.runInit,
	}
	c.Flags().BoolP(extension.FlagLocal, "l", false, "Write a local config (.cmsdb/config.yaml)")
	return c
}

func (e *Extension) runInit(c *cobra.Command, _ []string) error {
	local, _ := c.Flags().GetBool(extension.FlagLocal)
	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	res, err := e.initialise(ctx, local)

	log.Event("core:init", "init").
		Detail("backend", e.ctx.Database().Backend()).
		Detail("local", local).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("init: %w", err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(res)
	}

	w := cmd.Out()
	fmt.Fprintf(w, "Initialised %s database\n", res.Backend)
	fmt.Fprintf(w, "Default site: %s (%s)\n", res.Site.Name, res.Site.Domain)
	if res.Config != "" {
		fmt.Fprintf(w, "Wrote %s\n", res.Config)
	}
	return nil
}

func (e *Extension) initialise(ctx context.Context, local bool) (*initResult, error) {
	db := e.ctx.Database()
	if err := db.Initialize(ctx); err != nil {
		return nil, err
	}

	res := &initResult{Backend: db.Backend()}
	for _, ix := range defaultIndexes {
		name, err := db.CreateIndex(ctx, ix.coll, ix.spec)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", ix.coll, err)
		}
		res.Indexes = append(res.Indexes, name)
	}

	svc := e.ctx.CMS()
	site, err := svc.InitializeDefaultSite(ctx)
	if err != nil {
		return nil, fmt.Errorf("default site: %w", err)
	}
	res.Site = site

	settings, err := svc.GetGlobalSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	res.Settings = settings

	if local {
		path, err := writeLocalConfig(db.Backend())
		if err != nil {
			return nil, err
		}
		res.Config = path
	}
	return res, nil
}

// writeLocalConfig pins the backend in a local config file. An existing
// local file is updated in place so other keys survive.
func writeLocalConfig(backend string) (string, error) {
	cfg, err := config.LoadScope(config.ScopeLocal)
	if err != nil {
		return "", fmt.Errorf("load local config: %w", err)
	}
	if err := cfg.Set("database.type", backend); err != nil {
		return "", err
	}
	if err := cfg.SaveScope(config.ScopeLocal); err != nil {
		return "", fmt.Errorf("save local config: %w", err)
	}
	return config.LocalPath(), nil
}
