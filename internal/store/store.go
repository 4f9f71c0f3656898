package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/querysql"
)

// DefaultStatementCacheSize bounds the prepared statements kept per Store.
const DefaultStatementCacheSize = 128

func init() {
	open := func(ctx context.Context, uri string, schema *ir.Schema) (Adapter, error) {
		return OpenContext(ctx, uri, schema)
	}
	Register("sqlite", open)
	Register("sqlite3", open)
	Register("file", open)
}

// Store is the SQLite Adapter.
// Uses a single connection with WAL mode; statements are serialized.
type Store struct {
	db       *sql.DB
	schema   *ir.Schema
	compiler *querysql.Compiler

	mu    sync.Mutex // serializes statement use against cache eviction
	stmts *lru.Cache // SQL text -> *sql.Stmt
}

// Open creates or opens a SQLite database at path and creates the tables
// of schema. path may be ":memory:", a file path, or a sqlite:/file: URI.
// Missing parent directories are created.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, schema *ir.Schema) (*Store, error) {
	return OpenContext(context.Background(), path, schema)
}

// OpenContext is Open with a context for the connection check and DDL.
func OpenContext(ctx context.Context, uri string, schema *ir.Schema) (*Store, error) {
	dsn, file := sqliteDSN(uri)
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", ErrConnection, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrConnection, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connect to database: %v", ErrConnection, err)
	}

	// SQLite only supports one writer at a time, and every connection to
	// :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	stmts, err := lru.NewWithEvict(DefaultStatementCacheSize, func(_, value interface{}) {
		value.(*sql.Stmt).Close()
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create statement cache: %w", err)
	}

	return &Store{
		db:       db,
		schema:   schema,
		compiler: querysql.NewCompiler(schema, querysql.SQLite),
		stmts:    stmts,
	}, nil
}

// Close releases cached statements and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	s.stmts.Purge()
	s.mu.Unlock()
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - statements issued here bypass the Store's lock.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Schema returns the schema the Store was opened with.
func (s *Store) Schema() *ir.Schema {
	return s.schema
}

// query runs a cached prepared statement and hands the rows to fn.
// s.mu must be held.
func (s *Store) query(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	stmt, err := s.prepare(ctx, query)
	if err != nil {
		return err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return fn(rows)
}

func (s *Store) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if cached, ok := s.stmts.Get(query); ok {
		return cached.(*sql.Stmt), nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.stmts.Add(query, stmt)
	return stmt, nil
}

// sqliteDSN turns uri into a go-sqlite3 DSN and, for on-disk databases,
// the file path whose directory must exist.
func sqliteDSN(uri string) (dsn, file string) {
	switch {
	case uri == ":memory:" || uri == "sqlite::memory:" || uri == "sqlite3::memory:":
		return ":memory:", ""
	case strings.HasPrefix(uri, "file:"):
		path := strings.TrimPrefix(uri, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == ":memory:" || strings.Contains(uri, "mode=memory") {
			return uri, ""
		}
		return uri, strings.TrimPrefix(path, "//")
	}

	path := uri
	for _, prefix := range []string{"sqlite3:", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			path = strings.TrimPrefix(path, "//")
			break
		}
	}
	return path, path
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB, schema *ir.Schema) error {
	for _, stmt := range querysql.CreateSchema(schema, querysql.SQLite) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}

// classify maps driver errors onto ErrConflict and ErrConnection.
func classify(op, table string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s %s: %w: %w", op, table, ErrConflict, err)
		case sqliteErr.Code == sqlite3.ErrCantOpen,
			sqliteErr.Code == sqlite3.ErrNotADB,
			sqliteErr.Code == sqlite3.ErrIoErr,
			sqliteErr.Code == sqlite3.ErrCorrupt:
			return fmt.Errorf("%s %s: %w: %w", op, table, ErrConnection, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s %s: %w: %w", op, table, ErrConnection, err)
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}
