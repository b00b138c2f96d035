// config.go implements the "cmsdb config" command for configuration management.
//
// Separated from extension.go to isolate config-specific logic including
// the local vs global config precedence rules.
//
// Design: Config follows a cascade model similar to git: local config
// (.cmsdb/config.yaml) takes precedence over global (~/.cmsdb/config.yaml).
// The --local flag forces use of local config even if it doesn't exist yet.
// Reads and writes go through LoadScope so environment overrides are never
// persisted to disk.

package core

import (
	"fmt"
	"os"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "View or set config values",
		Long: `View or set config values.

  cmsdb config                        # show config
  cmsdb config database.type          # show one value
  cmsdb config database.type mongo    # set a value

Configuration locations:
  Global: ~/.cmsdb/config.yaml
  Local:  .cmsdb/config.yaml (created by init --local)

Uses local config if it exists, otherwise global.
Writes go to the same place reads come from.
Use --local to use local config instead.

Environment variables (CMS_DB_TYPE, CMS_SQLITE_PATH, CMS_MONGO_URI,
CMS_MONGO_DB, CMS_LOG_LEVEL, also read from .env and .env.local) override
file values at runtime but are never written back.

The mongo.uri value is shown with its password redacted.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runConfig,
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}
	c.Flags().Bool(extension.FlagLocal, false, "Use local config (.cmsdb/config.yaml)")
	return c
}

func runConfig(c *cobra.Command, args []string) error {
	forceLocal, _ := c.Flags().GetBool(extension.FlagLocal)

	// Local if it exists, otherwise global; --local forces local even
	// before the file exists.
	scope := config.ScopeGlobal
	if _, err := os.Stat(config.LocalPath()); err == nil || forceLocal {
		scope = config.ScopeLocal
	}
	cfg, err := config.LoadScope(scope)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("config load: %w", err))
	}

	scopeName := "global"
	if cfg.Scope() == config.ScopeLocal {
		scopeName = "local"
	}

	switch len(args) {
	case 0:
		values := cfg.Redacted()
		log.Event("core:config", "list").Detail("scope", scopeName).Write(nil)
		if cmd.JSON() {
			return cmd.PrintJSON(values)
		}
		return format.KeyValues(cmd.Out(), values)

	case 1:
		v, err := cfg.Get(args[0])
		log.Event("core:config", "get").Detail("key", args[0]).Write(err)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("config get %q: %w", args[0], err))
		}
		if args[0] == "mongo.uri" {
			v = cfg.Redacted()[args[0]]
		}
		if cmd.JSON() {
			return cmd.PrintJSON(map[string]string{"key": args[0], "value": v})
		}
		fmt.Fprintln(cmd.Out(), v)

	case 2:
		if err := cfg.Set(args[0], args[1]); err != nil {
			log.Event("core:config", "set").Detail("key", args[0]).Write(err)
			return cmd.PrintJSONError(fmt.Errorf("config set %q: %w", args[0], err))
		}

		saveErr := cfg.Save()
		// Value not logged: mongo.uri may carry credentials.
		log.Event("core:config", "set").Detail("key", args[0]).Detail("scope", scopeName).Write(saveErr)
		if saveErr != nil {
			return cmd.PrintJSONError(fmt.Errorf("config save: %w", saveErr))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(map[string]string{"key": args[0], "scope": scopeName})
		}
		fmt.Fprintf(cmd.Out(), "%s set (%s)\n", args[0], scopeName)
	}
	return nil
}
