// Package database is the lifecycle manager in front of the store backends.
//
// A Database owns at most one live store.Handler. It picks the backend once
// at construction, connects lazily on first use, retries failed connections
// with a fixed delay, and guarantees that concurrent callers share a single
// in-flight connection attempt. Every data operation is validated, logged
// and then proxied to the handler.
package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/store/mongo"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// source is the log source for every facade entry.
const source = "database"

// Default retry policy.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// Config selects and configures the backend.
type Config struct {
	// Backend is "sqlite" (default), "mongo" or "mongodb".
	Backend string
	SQLite  sqlite.Options
	Mongo   mongo.Options
	Retry   Retry
}

// Retry is the connection retry policy.
type Retry struct {
	// Attempts is the total number of Connect calls, including the first.
	Attempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// Option customises a Database.
type Option func(*Database)

// WithHandlerFactory replaces the configured backend. Tests use it to
// inject fakes.
func WithHandlerFactory(f store.Factory) Option {
	return func(d *Database) { d.factory = f }
}

// WithRetry overrides the retry policy from Config.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(d *Database) { d.retry = Retry{Attempts: attempts, Delay: delay} }
}

// WithClock sets the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// WithoutTimestamps disables createdAt/updatedAt stamping.
func WithoutTimestamps() Option {
	return func(d *Database) { d.timestamps = false }
}

// Database is the facade over one store.Handler.
type Database struct {
	backend    string
	factory    store.Factory
	retry      Retry
	now        func() time.Time
	timestamps bool

	mu      sync.RWMutex
	handler store.Handler
	group   singleflight.Group

	stampMu   sync.Mutex
	lastStamp time.Time
}

// NormalizeBackend maps a backend selector to store.BackendSQLite or
// store.BackendMongo.
func NormalizeBackend(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", store.BackendSQLite:
		return store.BackendSQLite, nil
	case store.BackendMongo, "mongodb":
		return store.BackendMongo, nil
	}
	return "", fmt.Errorf("%w: unsupported database type %q (use sqlite or mongo)", store.ErrConfiguration, name)
}

// New validates cfg and returns an unconnected Database.
func New(cfg Config, opts ...Option) (*Database, error) {
	backend, err := NormalizeBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	d := &Database{
		backend:    backend,
		retry:      cfg.Retry,
		now:        time.Now,
		timestamps: true,
	}
	switch backend {
	case store.BackendSQLite:
		o := cfg.SQLite
		d.factory = func() (store.Handler, error) { return sqlite.New(o) }
	case store.BackendMongo:
		o := cfg.Mongo
		d.factory = func() (store.Handler, error) { return mongo.New(o) }
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.retry.Attempts == 0 {
		d.retry.Attempts = DefaultRetryAttempts
	}
	if d.retry.Delay == 0 {
		d.retry.Delay = DefaultRetryDelay
	}
	if d.retry.Attempts < 1 || d.retry.Delay < 0 {
		return nil, fmt.Errorf("%w: retry attempts must be >= 1 and delay >= 0", store.ErrConfiguration)
	}
	return d, nil
}

// Backend returns the configured backend name.
func (d *Database) Backend() string { return d.backend }

// Initialize connects eagerly. Calling it is optional; every operation
// connects on demand.
func (d *Database) Initialize(ctx context.Context) error {
	_, err := d.handlerFor(ctx)
	return err
}

// handlerFor returns a connected handler, joining or starting the single
// connection attempt. The attempt runs detached from ctx so one caller
// giving up does not fail the others; ctx only bounds this caller's wait.
func (d *Database) handlerFor(ctx context.Context) (store.Handler, error) {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()
	if h != nil && h.IsConnected() {
		return h, nil
	}

	ch := d.group.DoChan("connect", func() (any, error) {
		return d.connect(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(store.Handler), nil
	}
}

// connect runs inside the single flight.
func (d *Database) connect(ctx context.Context) (store.Handler, error) {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()

	if h != nil {
		if h.IsConnected() {
			return h, nil
		}
		err := h.Connect(ctx)
		log.Event(source, "connect").Detail("backend", h.Backend()).Detail("reconnect", true).Write(err)
		if err == nil {
			return h, nil
		}
		_ = h.Disconnect(ctx)
		d.setHandler(nil)
	}

	h, err := d.factory()
	if err != nil {
		log.Event(source, "configure").Detail("backend", d.backend).Write(err)
		return nil, err
	}

	attempt := 0
	op := func() error {
		attempt++
		err := h.Connect(ctx)
		log.Event(source, "connect").
			Detail("backend", h.Backend()).
			Detail("attempt", attempt).
			Write(err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.L().Warn("connection failed, retrying",
			zap.String("backend", h.Backend()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retry.Delay), uint64(d.retry.Attempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		_ = h.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", store.ErrConnection, h.Backend(), attempt, err)
	}

	d.setHandler(h)
	log.L().Info("connected", zap.String("backend", h.Backend()), zap.Int("attempts", attempt))
	return h, nil
}

func (d *Database) setHandler(h store.Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// Shutdown closes the handler. It is safe to call with no handler and
// more than once.
func (d *Database) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	h := d.handler
	d.handler = nil
	d.mu.Unlock()
	if h == nil {
		return nil
	}

	var err error
	if s, ok := h.(store.Shutdowner); ok {
		err = s.Shutdown(ctx)
	} else {
		err = h.Disconnect(ctx)
	}
	log.Event(source, "shutdown").Detail("backend", h.Backend()).Write(err)
	return err
}

// ResetConnection disconnects and drops the current handler. It does not
// reconnect; the next operation connects a fresh handler.
func (d *Database) ResetConnection(ctx context.Context) error {
	return d.Shutdown(ctx)
}
