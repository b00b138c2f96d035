// settings.go implements the "cmsdb settings" command tree.

package content

import (
	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/cms"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

func (e *Extension) newSettingsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "settings",
		Short: "Show global CMS settings",
		Long: `Show the global settings, creating the defaults on first use.

  cmsdb settings
  cmsdb settings set --multi --routing domain
  cmsdb settings reset`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			s, err := e.svc.GetGlobalSettings(ctx)
			log.Event("content:settings", "get").Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(s)
		},
	}
	c.AddCommand(e.newSettingsSetCmd(), e.newSettingsResetCmd())
	return c
}

func (e *Extension) newSettingsSetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "set",
		Short: "Change global settings",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			u := cms.SettingsUpdate{MultiSite: optionalBool(c, extension.FlagMulti)}
			if r := optionalString(c, extension.FlagRouting); r != nil {
				rt := cms.RoutingType(*r)
				u.RoutingType = &rt
			}

			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			s, err := e.svc.SaveGlobalSettings(ctx, u)
			log.Event("content:settings", "save").Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(s)
		},
	}
	c.Flags().Bool(extension.FlagMulti, false, "Enable multi-site mode")
	c.Flags().String(extension.FlagRouting, "", "Routing type: path or domain")
	return c
}

func (e *Extension) newSettingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default settings",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := cmd.Context(c.Context())
			defer cancel()
			s, err := e.svc.ResetGlobalSettings(ctx)
			log.Event("content:settings", "reset").Write(err)
			if err != nil {
				return cmd.PrintJSONError(err)
			}
			return printOne(s)
		},
	}
}
