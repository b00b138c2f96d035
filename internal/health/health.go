// Package health serves liveness and readiness endpoints for cmsdb serve.
//
// Liveness guards against goroutine leaks; readiness pings the database
// through the facade's health check.
package health

import (
	"context"
	"errors"
	"time"

	"github.com/heptiolabs/healthcheck"
)

// DefaultGoroutineThreshold fails liveness when exceeded.
const DefaultGoroutineThreshold = 10000

// DefaultTimeout bounds each readiness probe.
const DefaultTimeout = 2 * time.Second

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// NewHandler returns a handler serving /live and /ready.
func NewHandler(db Pinger, timeout time.Duration) healthcheck.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultGoroutineThreshold))
	h.AddReadinessCheck("database", DatabaseCheck(db, timeout))
	return h
}

// DatabaseCheck returns a check that pings db within timeout.
func DatabaseCheck(db Pinger, timeout time.Duration) healthcheck.Check {
	return func() error {
		if db == nil {
			return errors.New("no database configured")
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return db.Ping(ctx)
	}
}
