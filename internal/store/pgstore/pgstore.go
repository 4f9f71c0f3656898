// Package pgstore is the PostgreSQL storage adapter. Importing it registers
// the postgres:// and postgresql:// schemes with store.Connect.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/querysql"
	"github.com/roach88/notitia/internal/store"
)

func init() {
	open := func(ctx context.Context, uri string, schema *ir.Schema) (store.Adapter, error) {
		return Open(ctx, uri, schema)
	}
	store.Register("postgres", open)
	store.Register("postgresql", open)
}

// Store is the PostgreSQL Adapter, backed by a pgx connection pool.
type Store struct {
	pool     *pgxpool.Pool
	schema   *ir.Schema
	compiler *querysql.Compiler
}

// Open connects to dsn, verifies the connection and creates the tables of
// schema if they don't exist.
func Open(ctx context.Context, dsn string, schema *ir.Schema) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", store.ErrConnection, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %v", store.ErrConnection, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", store.ErrConnection, err)
	}

	for _, ddl := range querysql.CreateSchema(schema, querysql.Postgres) {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", classify("create", "schema", err))
		}
	}

	return &Store{
		pool:     pool,
		schema:   schema,
		compiler: querysql.NewCompiler(schema, querysql.Postgres),
	}, nil
}

// Close closes every connection in the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool returns the underlying pool for direct queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// ExecuteQuery returns the rows selected by q, ordered by the order columns
// and then the primary key.
func (s *Store) ExecuteQuery(ctx context.Context, q queryir.QuerySpec) (ir.ResultSet, error) {
	table, ok := s.schema.Table(q.Table)
	if !ok {
		return nil, fmt.Errorf("execute query: unknown table %q", q.Table)
	}
	cols, err := store.ResolveColumns(table, q.Columns)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	sql, args, err := s.compiler.CompileQuery(q)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	rs, err := s.query(ctx, sql, args, cols)
	if err != nil {
		return nil, classify("query", q.Table, err)
	}
	return rs, nil
}

// ExecuteMutation applies m. RETURNING supplies the stored row for inserts,
// the merged rows for updates and the deleted keys for deletes.
func (s *Store) ExecuteMutation(ctx context.Context, m queryir.MutationSpec) (store.MutationOutcome, error) {
	table, ok := s.schema.Table(m.Table)
	if !ok {
		return store.MutationOutcome{}, fmt.Errorf("execute mutation: unknown table %q", m.Table)
	}
	sql, args, err := s.compiler.CompileMutation(m)
	if err != nil {
		return store.MutationOutcome{}, fmt.Errorf("execute mutation: %w", err)
	}

	returned := table.Columns
	if m.Kind == queryir.MutationDelete {
		returned = []ir.Column{table.PrimaryKey()}
	}

	rs, err := s.query(ctx, sql, args, returned)
	if err != nil {
		return store.MutationOutcome{}, classify(m.Kind.String(), m.Table, err)
	}
	return store.BuildOutcome(table, m.Kind, rs), nil
}

// PointLookup fetches one row by primary key, restricted to l.Filter.
func (s *Store) PointLookup(ctx context.Context, l store.PointLookup) (ir.Row, bool, error) {
	table, ok := s.schema.Table(l.Table)
	if !ok {
		return nil, false, fmt.Errorf("point lookup: unknown table %q", l.Table)
	}
	cols, err := store.ResolveColumns(table, l.Columns)
	if err != nil {
		return nil, false, fmt.Errorf("point lookup: %w", err)
	}
	sql, args, err := s.compiler.CompilePointLookup(l.Table, l.Key, l.Columns, l.Filter)
	if err != nil {
		return nil, false, fmt.Errorf("point lookup: %w", err)
	}

	rs, err := s.query(ctx, sql, args, cols)
	if err != nil {
		return nil, false, classify("point lookup", l.Table, err)
	}
	if len(rs) == 0 {
		return nil, false, nil
	}
	return rs[0], true, nil
}

func (s *Store) query(ctx context.Context, sql string, args []any, cols []ir.Column) (ir.ResultSet, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return store.ScanRows(rows, cols)
}

var _ store.RowScanner = (pgx.Rows)(nil)

// SQLSTATE codes and classes classify inspects.
const (
	uniqueViolation      = "23505"
	connectionException  = "08"
	operatorIntervention = "57P" // admin or crash shutdown, cannot connect now
)

// classify maps pgx errors onto store.ErrConflict and store.ErrConnection.
// unique_violation is a conflict; connection exceptions, server shutdowns
// and failures to establish a connection are connection errors. Deadlines
// and cancellation belong to the caller and stay plain errors, even when
// they interrupt a connection attempt.
func classify(op, table string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return fmt.Errorf("%s %s: %w: %w", op, table, store.ErrConflict, err)
		case strings.HasPrefix(pgErr.Code, connectionException), strings.HasPrefix(pgErr.Code, operatorIntervention):
			return fmt.Errorf("%s %s: %w: %w", op, table, store.ErrConnection, err)
		}
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s %s: %w: %w", op, table, store.ErrConnection, err)
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}
