// Package mongo implements store.Handler on MongoDB.
//
// Operations map almost one to one onto the driver. The package's job is
// translation: store conditions become bson filters, string ids become
// ObjectIDs, and driver results are normalised into the store value set.
package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Defaults applied by New.
const (
	DefaultURI                    = "mongodb://localhost:27017"
	DefaultDatabase               = "cms"
	DefaultMaxPoolSize            = 10
	DefaultServerSelectionTimeout = 5 * time.Second
	DefaultSocketTimeout          = 45 * time.Second
)

// Options configures a Handler. Pool size and timeouts are fixed for the
// life of the handler.
type Options struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
	SocketTimeout          time.Duration
}

// Handler is the MongoDB store.Handler.
type Handler struct {
	opts Options

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

// Compile-time interface compliance.
var (
	_ store.Handler    = (*Handler)(nil)
	_ store.Shutdowner = (*Handler)(nil)
	_ store.Describer  = (*Handler)(nil)
)

// New validates opts and returns an unconnected handler.
func New(opts Options) (*Handler, error) {
	if opts.URI == "" {
		opts.URI = DefaultURI
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.MaxPoolSize == 0 {
		opts.MaxPoolSize = DefaultMaxPoolSize
	}
	if opts.ServerSelectionTimeout <= 0 {
		opts.ServerSelectionTimeout = DefaultServerSelectionTimeout
	}
	if opts.SocketTimeout <= 0 {
		opts.SocketTimeout = DefaultSocketTimeout
	}
	if err := options.Client().ApplyURI(opts.URI).Validate(); err != nil {
		return nil, fmt.Errorf("%w: mongo uri: %v", store.ErrConfiguration, err)
	}
	return &Handler{opts: opts}, nil
}

// Backend returns store.BackendMongo.
func (h *Handler) Backend() string { return store.BackendMongo }

// Describe reports the target database for status output. Credentials in
// the URI are not included.
func (h *Handler) Describe() map[string]string {
	return map[string]string{
		"database": h.opts.Database,
		"pool":     fmt.Sprint(h.opts.MaxPoolSize),
	}
}

func (h *Handler) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(h.opts.URI).
		SetMaxPoolSize(h.opts.MaxPoolSize).
		SetServerSelectionTimeout(h.opts.ServerSelectionTimeout).
		SetSocketTimeout(h.opts.SocketTimeout)
}

// Connect creates the client and pings the primary.
func (h *Handler) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return nil
	}

	client, err := mongo.Connect(ctx, h.clientOptions())
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return fmt.Errorf("ping mongo: %w", err)
	}
	h.client = client
	h.db = client.Database(h.opts.Database)
	return nil
}

// Disconnect closes the client.
func (h *Handler) Disconnect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Disconnect(ctx)
	h.client, h.db = nil, nil
	if err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// Shutdown disconnects the client.
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.Disconnect(ctx)
}

// IsConnected reports whether a client is open.
func (h *Handler) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client != nil
}

// Ping checks the primary is reachable.
func (h *Handler) Ping(ctx context.Context) error {
	h.mu.RLock()
	client := h.client
	h.mu.RUnlock()
	if client == nil {
		return store.ErrNotConnected
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// collection sanitises name and returns the driver collection.
func (h *Handler) collection(name string) (*mongo.Collection, error) {
	clean, err := store.SanitizeCollection(name)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	db := h.db
	h.mu.RUnlock()
	if db == nil {
		return nil, store.ErrNotConnected
	}
	return db.Collection(clean), nil
}

// Drop removes the whole database. It exists for test cleanup.
func (h *Handler) Drop(ctx context.Context) error {
	h.mu.RLock()
	db := h.db
	h.mu.RUnlock()
	if db == nil {
		return store.ErrNotConnected
	}
	return db.Drop(ctx)
}
