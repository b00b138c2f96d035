// pages.go implements the "cmsdb page" command tree.
//
// New pages start as unpublished drafts. publish clears the draft flag and
// stamps publishedAt; unpublish only takes the page offline.

package content

import (
	"fmt"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

func (e *Extension) newPageCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "page",
		Short: "Manage pages",
		Long: `Create, list, edit and publish pages.

  cmsdb page create --title Home --route / --site 1
  cmsdb page ls --published --sort title
  cmsdb page publish 3`,
	}
	c.AddCommand(
		e.newPageLsCmd(),
		e.newPageGetCmd(),
		e.newPageCreateCmd(),
		e.newPageUpdateCmd(),
		e.newPagePublishCmd(true),
		e.newPagePublishCmd(false),
		e.newPageDuplicateCmd(),
		e.newPageRmCmd(),
	)
	return c
}

func (e *Extension) newPageLsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ls",
		Short: "List pages",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			site, _ := c.Flags().GetString(extension.FlagSite)
			sort, _ := c.Flags().GetString(extension.FlagSort)
			limit, _ := c.Flags().GetInt64(extension.FlagLimit)
			skip, _ := c.Flags().GetInt64(extension.FlagSkip)
			q := cms.PageQuery{
				SiteID:    site,
				Published: optionalBool(c, extension.FlagPublished),
				Draft:     optionalBool(c, extension.FlagDraft),
				Limit:     limit,
				Skip:      skip,
				Sort:      cms.Sort(sort),
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			pages, err := e.svc.ListPages(ctx, q)
			log.Event("content:page", "list").Detail("site", site).Detail("count", len(pages)).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printList(pages, pageColumns)
		},
	}
	c.Flags().String(extension.FlagSite, "", "Only pages of this site id")
	c.Flags().Bool(extension.FlagPublished, false, "Filter on published state")
	c.Flags().Bool(extension.FlagDraft, false, "Filter on draft state")
	c.Flags().String(extension.FlagSort, "", "newest, oldest, title, route or updated (default)")
	c.Flags().Int64(extension.FlagLimit, 0, "Maximum pages (0 = all)")
	c.Flags().Int64(extension.FlagSkip, 0, "Pages to skip")
	return c
}

func (e *Extension) newPageGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get [id]",
		Short: "Show a page by id or --route",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			route, _ := c.Flags().GetString(extension.FlagRoute)
			site, _ := c.Flags().GetString(extension.FlagSite)
			if (len(args) == 0) == (route == "") {
				return cmd.PrintJSONError(fmt.Errorf("give a page id or --route"))
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			var page *cms.Page
			var err error
			key := route
			if len(args) == 1 {
				key = args[0]
				page, err = e.svc.GetPage(ctx, key)
			} else {
				page, err = e.svc.GetPageByRoute(ctx, route, site)
			}
			if err == nil && page == nil {
				err = fmt.Errorf("page %s: %w", key, errNotFound)
			}
			log.Event("content:page", "get").ID(key).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(page)
		},
	}
	c.Flags().String(extension.FlagRoute, "", "Look up by route")
	c.Flags().String(extension.FlagSite, "", "Site id for --route")
	return c
}

func (e *Extension) newPageCreateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a draft page",
		Long: `Create an unpublished draft. The route must not be used by any other page.
Sections are a JSON array of objects:
  --sections '[{"type": "hero", "title": "Welcome"}]'`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			title, _ := c.Flags().GetString(extension.FlagTitle)
			route, _ := c.Flags().GetString(extension.FlagRoute)
			site, _ := c.Flags().GetString(extension.FlagSite)
			in := cms.PageInput{Title: title, Route: route, SiteID: site}
			if raw, _ := c.Flags().GetString(extension.FlagSections); raw != "" {
				if err := cmd.ReadJSON(raw, &in.Sections); err != nil {
					return cmd.PrintJSONError(fmt.Errorf("sections: %w", err))
				}
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			page, err := e.svc.CreatePage(ctx, in)
			ev := log.Event("content:page", "create").Detail("route", route)
			if page != nil {
				ev.ID(page.ID)
			}
			ev.Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(page)
		},
	}
	c.Flags().String(extension.FlagTitle, "", "Page title (required)")
	c.Flags().String(extension.FlagRoute, "", "Page route (required)")
	c.Flags().String(extension.FlagSite, "", "Owning site id")
	c.Flags().String(extension.FlagSections, "", "JSON array of sections")
	return c
}

func (e *Extension) newPageUpdateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a page",
		Long: `Change page fields; only the flags given are applied.
Use --draft to save the change as a draft.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			u := cms.PageUpdate{
				Title:  optionalString(c, extension.FlagTitle),
				Route:  optionalString(c, extension.FlagRoute),
				SiteID: optionalString(c, extension.FlagSite),
			}
			if raw, _ := c.Flags().GetString(extension.FlagSections); raw != "" {
				if err := cmd.ReadJSON(raw, &u.Sections); err != nil {
					return cmd.PrintJSONError(fmt.Errorf("sections: %w", err))
				}
			}
			draft, _ := c.Flags().GetBool(extension.FlagDraft)

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			var page *cms.Page
			var err error
			if draft {
				page, err = e.svc.SavePageDraft(ctx, args[0], u)
			} else {
				page, err = e.svc.UpdatePage(ctx, args[0], u)
			}
			log.Event("content:page", "update").ID(args[0]).Detail("draft", draft).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(page)
		},
	}
	c.Flags().String(extension.FlagTitle, "", "New title")
	c.Flags().String(extension.FlagRoute, "", "New route")
	c.Flags().String(extension.FlagSite, "", "New site id")
	c.Flags().String(extension.FlagSections, "", "Replacement JSON array of sections")
	c.Flags().Bool(extension.FlagDraft, false, "Save as draft")
	return c
}

func (e *Extension) newPagePublishCmd(publish bool) *cobra.Command {
	use, short, action := "publish <id>", "Publish a page", "publish"
	if !publish {
		use, short, action = "unpublish <id>", "Take a page offline", "unpublish"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			var page *cms.Page
			var err error
			if publish {
				page, err = e.svc.PublishPage(ctx, args[0])
			} else {
				page, err = e.svc.UnpublishPage(ctx, args[0])
			}
			log.Event("content:page", action).ID(args[0]).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			if cmd.JSON() {
				return cmd.PrintJSON(page)
			}
			fmt.Fprintf(cmd.Out(), "%s %s (%s)\n", action+"ed", page.Route, page.ID)
			return nil
		},
	}
}

func (e *Extension) newPageDuplicateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a page as a new draft",
		Long: `Copy a page to "<route>-copy" (or "<route>-copy-N" when taken).
The title defaults to "<title> (Copy)".`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			title, _ := c.Flags().GetString(extension.FlagTitle)

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			page, err := e.svc.DuplicatePage(ctx, args[0], title)
			log.Event("content:page", "duplicate").ID(args[0]).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(page)
		},
	}
	c.Flags().String(extension.FlagTitle, "", "Title of the copy")
	return c
}

func (e *Extension) newPageRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			ok, err := e.svc.DeletePage(ctx, args[0])
			if err == nil && !ok {
				err = fmt.Errorf("page %s: %w", args[0], errNotFound)
			}
			log.Event("content:page", "delete").ID(args[0]).Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			if cmd.JSON() {
				return cmd.PrintJSON(map[string]any{"deleted": true, "id": args[0]})
			}
			fmt.Fprintf(cmd.Out(), "deleted page %s\n", args[0])
			return nil
		},
	}
}
