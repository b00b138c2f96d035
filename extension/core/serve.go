// serve.go implements the "cmsdb serve" command.
//
// Separated from extension.go because serve has unique lifecycle
// requirements. Unlike other commands that run and exit, serve blocks
// until interrupted, answering probes and metric scrapes.
//
// Design: serve exposes /live and /ready (heptiolabs/healthcheck) and
// /metrics (Prometheus) on one listener. Readiness pings the shared
// facade, so the first probe also establishes the connection. The
// process-wide metrics registry is fed by every logged operation, which
// includes the pings the probes cause.

package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpl-au/cmsdb/cmd"
	"github.com/jpl-au/cmsdb/extension"
	"github.com/jpl-au/cmsdb/internal/health"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownGrace bounds in-flight requests on interrupt.
const shutdownGrace = 5 * time.Second

func (e *Extension) newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve health and metrics endpoints",
		Long: `Starts an HTTP server with:

  /live     liveness (goroutine threshold)
  /ready    readiness (database ping)
  /metrics  Prometheus metrics for database operations

The address defaults to serve.addr from config (:9090).
Stop with Ctrl-C or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: e.runServe,
	}
	c.Flags().String(extension.FlagAddr, "", "Listen address (default from config)")
	return c
}

func (e *Extension) runServe(c *cobra.Command, _ []string) error {
	addr, _ := c.Flags().GetString(extension.FlagAddr)
	if addr == "" {
		addr = e.ctx.Config().ServeAddr()
	}

	met := cmd.Metrics()
	if met == nil {
		met = metrics.New()
		defer met.Attach()()
	}

	parent := c.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(e.ctx.Database(), met),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log.L().Info("serving", zap.String("addr", addr), zap.String("backend", e.ctx.Database().Backend()))
	fmt.Fprintf(cmd.Out(), "Serving on %s (/live, /ready, /metrics)\n", addr)

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		err = srv.Shutdown(sctx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Event("core:serve", "serve").Detail("addr", addr).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("serve %s: %w", addr, err))
	}
	return nil
}

// newServeMux routes the probe and metric endpoints.
func newServeMux(db health.Pinger, met *metrics.Metrics) *http.ServeMux {
	probes := health.NewHandler(db, health.DefaultTimeout)
	mux := http.NewServeMux()
	mux.HandleFunc("/live", probes.LiveEndpoint)
	mux.HandleFunc("/ready", probes.ReadyEndpoint)
	mux.Handle("/metrics", met.Handler())
	return mux
}
