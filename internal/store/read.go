package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// ExecuteQuery returns the rows selected by q in deterministic order:
// ORDER BY <order columns>, <pk> ASC.
//
// Returns an empty ResultSet (not nil) if no rows match.
func (s *Store) ExecuteQuery(ctx context.Context, q queryir.QuerySpec) (ir.ResultSet, error) {
	table, ok := s.schema.Table(q.Table)
	if !ok {
		return nil, fmt.Errorf("execute query: unknown table %q", q.Table)
	}
	cols, err := ResolveColumns(table, q.Columns)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	query, args, err := s.compiler.CompileQuery(q)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rs ir.ResultSet
	err = s.query(ctx, query, args, func(rows *sql.Rows) error {
		rs, err = ScanRows(rows, cols)
		return err
	})
	if err != nil {
		return nil, classify("query", q.Table, err)
	}
	return rs, nil
}

// PointLookup fetches one row by primary key, restricted to l.Filter.
func (s *Store) PointLookup(ctx context.Context, l PointLookup) (ir.Row, bool, error) {
	table, ok := s.schema.Table(l.Table)
	if !ok {
		return nil, false, fmt.Errorf("point lookup: unknown table %q", l.Table)
	}
	cols, err := ResolveColumns(table, l.Columns)
	if err != nil {
		return nil, false, fmt.Errorf("point lookup: %w", err)
	}
	query, args, err := s.compiler.CompilePointLookup(l.Table, l.Key, l.Columns, l.Filter)
	if err != nil {
		return nil, false, fmt.Errorf("point lookup: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rs ir.ResultSet
	err = s.query(ctx, query, args, func(rows *sql.Rows) error {
		rs, err = ScanRows(rows, cols)
		return err
	})
	if err != nil {
		return nil, false, classify("point lookup", l.Table, err)
	}
	if len(rs) == 0 {
		return nil, false, nil
	}
	return rs[0], true, nil
}
