// health.go implements the "cmsdb health" and "cmsdb status" commands.
//
// health performs a live round trip and exits non-zero when the backend
// is unreachable, so it can back a container probe. status never connects;
// it reports what the process knows about the facade.

package core

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/format"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/spf13/cobra"
)

// errUnhealthy is returned by health when the ping fails.
var errUnhealthy = errors.New("database unhealthy")

func (e *Extension) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database connection",
		Long: `Connects to the configured backend and performs one round trip.

Exits with status 1 when the database is unreachable.`,
		Args: cobra.NoArgs,
		RunE: e.runHealth,
	}
}

func (e *Extension) runHealth(c *cobra.Command, _ []string) error {
	ctx, cancel := cmd.Context(c.Context())
	defer cancel()

	st := e.ctx.Database().HealthCheck(ctx)
	if cmd.JSON() {
		if err := cmd.PrintJSON(st); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.Out(), "%s: %s (%s, %s)\n", st.Backend, st.Status, st.Message, st.Latency.Round(time.Microsecond))
	}
	if !st.OK() {
		c.SilenceErrors = cmd.JSON()
		return errUnhealthy
	}
	return nil
}

func (e *Extension) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend and connection details",
		Long: `Shows the configured backend, its settings and whether this process
holds a live connection. Status does not connect.`,
		Args: cobra.NoArgs,
		RunE: e.runStatus,
	}
}

func (e *Extension) runStatus(_ *cobra.Command, _ []string) error {
	st := e.ctx.Database().Status()
	log.Event("core:status", "status").Detail("backend", st.Backend).Write(nil)

	if cmd.JSON() {
		return cmd.PrintJSON(st)
	}

	values := map[string]string{
		"backend":   st.Backend,
		"connected": fmt.Sprint(st.Connected),
	}
	maps.Copy(values, st.Details)
	values["config"] = configSource(e.ctx.Config())
	return format.KeyValues(cmd.Out(), values)
}

// configSource names the config file in effect.
func configSource(cfg *config.Config) string {
	if cfg != nil && cfg.Scope() == config.ScopeLocal {
		return config.LocalPath()
	}
	return config.GlobalPath()
}
