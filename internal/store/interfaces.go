// interfaces.go defines the handler contract implemented by each backend.
//
// The interfaces are split by capability (Reader, Writer, Indexer, ...) so
// consumers depend only on what they use. Handler composes the mandatory
// set; Maintainer and Shutdowner are optional and discovered with a type
// assertion.
//
// Not-found is never an error: FindOne and FindByID return a nil Document,
// UpdateByID returns nil and DeleteByID returns false.

package store

import "context"

// Connector manages the backend connection lifecycle.
type Connector interface {
	// Connect establishes the connection and verifies it with a round trip.
	// Calling Connect on a connected handler is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Safe to call when not connected.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether the last Connect succeeded and no
	// Disconnect has happened since.
	IsConnected() bool

	// Ping performs a cheap round trip to the backend.
	Ping(ctx context.Context) error
}

// Reader defines the query operations.
type Reader interface {
	// Find returns every document matching the filter, honouring sort,
	// skip, limit and projection. Documents with equal sort keys come back
	// in _id order.
	Find(ctx context.Context, coll string, filter Filter, opts FindOptions) ([]Document, error)

	// FindOne returns the first matching document or nil.
	FindOne(ctx context.Context, coll string, filter Filter, opts FindOneOptions) (Document, error)

	// FindByID returns the document with the given _id or nil.
	FindByID(ctx context.Context, coll, id string, opts FindOneOptions) (Document, error)

	// Count returns the number of matching documents.
	Count(ctx context.Context, coll string, filter Filter) (int64, error)

	// Exists reports whether at least one document matches.
	Exists(ctx context.Context, coll string, filter Filter) (bool, error)

	// Distinct returns the unique non-null values of field among matching
	// documents.
	Distinct(ctx context.Context, coll, field string, filter Filter) ([]any, error)
}

// Writer defines the mutating operations.
type Writer interface {
	// Create inserts doc and returns it with the assigned _id. Any _id on
	// the input is ignored.
	Create(ctx context.Context, coll string, doc Document) (Document, error)

	// CreateMany inserts docs atomically where the backend allows it and
	// returns them with assigned ids, in input order.
	CreateMany(ctx context.Context, coll string, docs []Document) ([]Document, error)

	// Update applies patch to every matching document and returns the
	// number matched. With Upsert and no match, a new document is created
	// from the filter's equality conditions plus the patch.
	Update(ctx context.Context, coll string, filter Filter, patch Patch, opts UpdateOptions) (int64, error)

	// UpdateByID applies patch to one document and returns the result, or
	// nil when the id does not exist and Upsert is false.
	UpdateByID(ctx context.Context, coll, id string, patch Patch, opts UpdateOptions) (Document, error)

	// Delete removes every matching document and returns the count.
	Delete(ctx context.Context, coll string, filter Filter) (int64, error)

	// DeleteByID removes one document and reports whether it existed.
	DeleteByID(ctx context.Context, coll, id string) (bool, error)
}

// Aggregator runs the supported aggregation subset.
type Aggregator interface {
	Aggregate(ctx context.Context, coll string, pipeline Pipeline) ([]Document, error)
}

// Indexer manages secondary indexes.
type Indexer interface {
	// CreateIndex creates the index if absent and returns its name.
	CreateIndex(ctx context.Context, coll string, spec IndexSpec) (string, error)
	DropIndex(ctx context.Context, coll, name string) error
	ListIndexes(ctx context.Context, coll string) ([]IndexInfo, error)
}

// Handler is the full contract every backend implements.
type Handler interface {
	Connector
	Reader
	Writer
	Aggregator
	Indexer

	// Backend returns BackendSQLite or BackendMongo.
	Backend() string
}

// Maintainer is implemented by backends with on-disk maintenance.
type Maintainer interface {
	// Checkpoint flushes the write-ahead log into the main database file.
	Checkpoint(ctx context.Context) error
	// Vacuum rebuilds the database file, reclaiming free pages.
	Vacuum(ctx context.Context) error
	// Backup writes a consistent copy of the database to path.
	Backup(ctx context.Context, path string) error
}

// Shutdowner is implemented by backends that need more than Disconnect on
// process exit.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Describer is implemented by backends that can report their location
// (file path or database name) for status output.
type Describer interface {
	Describe() map[string]string
}

// Factory creates an unconnected handler. Configuration problems are
// reported here as ErrConfiguration.
type Factory func() (Handler, error)
