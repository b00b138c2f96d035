// sites.go implements the "cmsdb site" command tree.
//
// Exactly one site is the default at a time. The first site created
// becomes the default, and the default site cannot be deleted.

package content

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

func (e *Extension) newSiteCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "site",
		Short: "Manage sites",
		Long: `Create, list and edit the sites served by the CMS.

  cmsdb site create --name Shop --domain shop.example.com
  cmsdb site default 2
  cmsdb site domains`,
	}
	c.AddCommand(
		e.newSiteLsCmd(),
		e.newSiteGetCmd(),
		e.newSiteCreateCmd(),
		e.newSiteUpdateCmd(),
		e.newSiteDefaultCmd(),
		e.newSiteDomainsCmd(),
		e.newSiteRmCmd(),
	)
	return c
}

func (e *Extension) newSiteLsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ls",
		Short: "List sites",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			sort, _ := c.Flags().GetString(extension.FlagSort)
			limit, _ := c.Flags().GetInt64(extension.FlagLimit)
			skip, _ := c.Flags().GetInt64(extension.FlagSkip)
			q := cms.SiteQuery{
				Active:  optionalBool(c, extension.FlagActive),
				Default: optionalBool(c, extension.FlagDefault),
				Limit:   limit,
				Skip:    skip,
				Sort:    cms.Sort(sort),
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			sites, err := e.svc.ListSites(ctx, q)
			log.Event("content:site", "list").Detail("count", len(sites)).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printList(sites, siteColumns)
		},
	}
	c.Flags().Bool(extension.FlagActive, false, "Filter on active state")
	c.Flags().Bool(extension.FlagDefault, false, "Filter on default state")
	c.Flags().String(extension.FlagSort, "", "newest, oldest, name (default) or domain")
	c.Flags().Int64(extension.FlagLimit, 0, "Maximum sites (0 = all)")
	c.Flags().Int64(extension.FlagSkip, 0, "Sites to skip")
	return c
}

func (e *Extension) newSiteGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get [id]",
		Short: "Show a site by id, --domain, or the default",
		Long:  `Show a site by id or --domain. With neither, shows the default site.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			domain, _ := c.Flags().GetString(extension.FlagDomain)
			if len(args) == 1 && domain != "" {
				return cmd.PrintJSONError(fmt.Errorf("give a site id or --domain, not both"))
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			var site *cms.Site
			var err error
			key := "default"
			switch {
			case len(args) == 1:
				key = args[0]
				site, err = e.svc.GetSite(ctx, key)
			case domain != "":
				key = domain
				site, err = e.svc.GetSiteByDomain(ctx, domain)
			default:
				site, err = e.svc.GetDefaultSite(ctx)
			}
			if err == nil && site == nil {
				err = fmt.Errorf("site %s: %w", key, errNotFound)
			}
			log.Event("content:site", "get").ID(key).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(site)
		},
	}
	c.Flags().String(extension.FlagDomain, "", "Look up by domain")
	return c
}

func (e *Extension) newSiteCreateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a site",
		Long: `Create a site. The domain must be unique. The first site, or one created
with --default, becomes the default site.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			name, _ := c.Flags().GetString(extension.FlagName)
			domain, _ := c.Flags().GetString(extension.FlagDomain)
			desc, _ := c.Flags().GetString(extension.FlagDescription)
			def, _ := c.Flags().GetBool(extension.FlagDefault)
			in := cms.SiteInput{
				Name:        name,
				Domain:      domain,
				Description: desc,
				Active:      optionalBool(c, extension.FlagActive),
				Default:     def,
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			site, err := e.svc.CreateSite(ctx, in)
			ev := log.Event("content:site", "create").Detail("domain", domain)
			if site != nil {
				ev.ID(site.ID)
			}
			ev.Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(site)
		},
	}
	c.Flags().String(extension.FlagName, "", "Site name (required)")
	c.Flags().String(extension.FlagDomain, "", "Site domain (required)")
	c.Flags().String(extension.FlagDescription, "", "Description")
	c.Flags().Bool(extension.FlagActive, true, "Site is active")
	c.Flags().Bool(extension.FlagDefault, false, "Make this the default site")
	return c
}

func (e *Extension) newSiteUpdateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a site",
		Long:  `Change site fields; only the flags given are applied.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			u := cms.SiteUpdate{
				Name:        optionalString(c, extension.FlagName),
				Domain:      optionalString(c, extension.FlagDomain),
				Description: optionalString(c, extension.FlagDescription),
				Active:      optionalBool(c, extension.FlagActive),
				Default:     optionalBool(c, extension.FlagDefault),
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			site, err := e.svc.UpdateSite(ctx, args[0], u)
			log.Event("content:site", "update").ID(args[0]).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(site)
		},
	}
	c.Flags().String(extension.FlagName, "", "New name")
	c.Flags().String(extension.FlagDomain, "", "New domain")
	c.Flags().String(extension.FlagDescription, "", "New description")
	c.Flags().Bool(extension.FlagActive, false, "Set active state")
	c.Flags().Bool(extension.FlagDefault, false, "Set default state")
	return c
}

func (e *Extension) newSiteDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <id>",
		Short: "Make a site the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			site, err := e.svc.SetDefaultSite(ctx, args[0])
			log.Event("content:site", "set_default").ID(args[0]).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			if cmd.JSON() {
				return cmd.PrintJSON(site)
			}
			fmt.Fprintf(cmd.Out(), "default site is now %s (%s)\n", site.Name, site.ID)
			return nil
		},
	}
}

func (e *Extension) newSiteDomainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List domain to site id mappings",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			m, err := e.svc.SiteDomainMapping(ctx)
			log.Event("content:site", "domains").Detail("count", len(m)).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printList(m, []string{"domain", "siteId"})
		},
	}
}

func (e *Extension) newSiteRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a site",
		Long:  `Delete a site. The default site and sites that still own pages are refused.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			ok, err := e.svc.DeleteSite(ctx, args[0])
			if err == nil && !ok {
				err = fmt.Errorf("site %s: %w", args[0], errNotFound)
			}
			log.Event("content:site", "delete").ID(args[0]).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			if cmd.JSON() {
				return cmd.PrintJSON(map[string]any{"deleted": true, "id": args[0]})
			}
			fmt.Fprintf(cmd.Out(), "deleted site %s\n", args[0])
			return nil
		},
	}
}
