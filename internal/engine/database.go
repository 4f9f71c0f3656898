package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/store"
)

const (
	// DefaultMergeWorkers is the size of the merge and lookup pool.
	DefaultMergeWorkers = 32

	// DefaultLookupTimeout bounds the point lookups of one mutation.
	DefaultLookupTimeout = 5 * time.Second
)

// Database executes queries and mutations against a store.Adapter and
// keeps subscriptions in sync.
//
// Thread-safety: safe for concurrent use.
type Database struct {
	adapter store.Adapter
	schema  *ir.Schema
	logger  *slog.Logger
	ids     IDGenerator

	pool          *ants.Pool
	workers       int
	lookupTimeout time.Duration
	hook          func(MutationEvent)

	locks    *tableLocks
	clocks   tableClocks
	registry *registry

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(db *Database) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithMergeWorkers sets the size of the pool that runs merges and point
// lookups. Values below 1 are ignored.
func WithMergeWorkers(n int) Option {
	return func(db *Database) {
		if n > 0 {
			db.workers = n
		}
	}
}

// WithLookupTimeout bounds the point lookups issued for one mutation.
func WithLookupTimeout(d time.Duration) Option {
	return func(db *Database) {
		if d > 0 {
			db.lookupTimeout = d
		}
	}
}

// WithMutationHook registers fn to observe every committed mutation. It is
// called after broadcast with no engine lock held.
func WithMutationHook(fn func(MutationEvent)) Option {
	return func(db *Database) {
		db.hook = fn
	}
}

// WithIDGenerator sets the subscription ID generator. Defaults to
// UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(db *Database) {
		if ids != nil {
			db.ids = ids
		}
	}
}

// Open wraps adapter. The adapter must have been opened for schema.
func Open(adapter store.Adapter, schema *ir.Schema, opts ...Option) (*Database, error) {
	if adapter == nil {
		return nil, fmt.Errorf("open database: nil adapter")
	}
	if schema == nil {
		return nil, fmt.Errorf("open database: nil schema")
	}

	db := &Database{
		adapter:       adapter,
		schema:        schema,
		logger:        slog.Default(),
		ids:           UUIDv7Generator{},
		workers:       DefaultMergeWorkers,
		lookupTimeout: DefaultLookupTimeout,
		locks:         newTableLocks(),
		registry:      newRegistry(),
	}
	for _, opt := range opts {
		opt(db)
	}

	tables := schema.Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	db.clocks = newTableClocks(names)

	// Nonblocking: a full pool makes submit run the task inline instead
	// of waiting, so a lookup that mutates cannot starve its own merges.
	pool, err := ants.NewPool(db.workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			db.logger.Error("merge worker panicked", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create merge pool: %w", err)
	}
	db.pool = pool
	return db, nil
}

// Connect opens the adapter registered for uri's scheme and wraps it.
func Connect(ctx context.Context, uri string, schema *ir.Schema, opts ...Option) (*Database, error) {
	adapter, err := store.Connect(ctx, uri, schema)
	if err != nil {
		return nil, &Error{Code: CodeConnection, Message: "connect failed", Err: err}
	}
	db, err := Open(adapter, schema, opts...)
	if err != nil {
		adapter.Close()
		return nil, err
	}
	return db, nil
}

// Schema returns the schema the database was opened with.
func (db *Database) Schema() *ir.Schema {
	return db.schema
}

// Subscriptions returns the number of active subscriptions.
func (db *Database) Subscriptions() int {
	return db.registry.count()
}

// Close closes every subscription, stops the worker pool and closes the
// adapter. Later calls return the first call's result.
func (db *Database) Close() error {
	db.closeOnce.Do(func() {
		db.closed.Store(true)
		for _, s := range db.registry.all() {
			s.close(ErrDatabaseClosed)
		}
		db.pool.Release()
		if err := db.adapter.Close(); err != nil {
			db.closeErr = fmt.Errorf("close adapter: %w", err)
		}
	})
	return db.closeErr
}

func (db *Database) checkOpen(table string) error {
	if db.closed.Load() {
		return newClosedError(table, ErrDatabaseClosed)
	}
	return nil
}

// adapterFailure classifies and logs an adapter error. A connection
// failure closes every subscription.
func (db *Database) adapterFailure(op, table string, err error) *Error {
	e := adapterError(op, table, err)
	switch e.Code {
	case CodeConnection:
		db.logger.Error("storage unreachable", "op", op, "table", table, "error", err)
		db.fail(e)
	case CodeMutationConflict:
		db.logger.Warn("mutation rejected", "table", table, "error", err)
	default:
		db.logger.Error("adapter call failed", "op", op, "table", table, "error", err)
	}
	return e
}

// fail closes every subscription with cause.
func (db *Database) fail(cause error) {
	for _, s := range db.registry.all() {
		s.close(cause)
	}
}

// submit runs task on the pool, or inline when the pool is full or
// released.
func (db *Database) submit(wg *sync.WaitGroup, task func()) {
	wg.Add(1)
	run := func() {
		defer wg.Done()
		task()
	}
	if err := db.pool.Submit(run); err != nil {
		run()
	}
}
