package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
)

// ErrUnexpectedRequery is returned by FakeAdapter.ExecuteQuery once the
// query budget set with ForbidRequery is spent.
var ErrUnexpectedRequery = errors.New("fake adapter: unexpected requery")

// FakeAdapter is an in-memory store.Adapter for engine tests.
//
// Rows are filtered with queryir.Evaluate and ordered with
// queryir.CompareRows, so results match what the SQL adapters return for
// the same specs. Knobs let tests observe and perturb the engine:
//   - call counters for queries, mutations and point lookups
//   - ForbidRequery: fail ExecuteQuery once a budget is spent
//   - SetReportKeys(false): report KeysKnown=false for updates and deletes
//   - FailLookups / FailAll: inject point-lookup or connection errors
//   - OnLookup: run a hook before each point lookup is answered
//
// Thread-safety: safe for concurrent use.
type FakeAdapter struct {
	mu     sync.Mutex
	schema *ir.Schema
	tables map[string][]ir.Row // table -> full rows, insertion order

	queries, mutations, lookups int
	queryBudget                 int // -1: unlimited
	hideKeys                    bool
	lookupErr                   error
	allErr                      error
	onLookup                    func(store.PointLookup)
	closed                      bool
}

var _ store.Adapter = (*FakeAdapter)(nil)

// NewFakeAdapter creates an empty in-memory store for schema.
func NewFakeAdapter(schema *ir.Schema) *FakeAdapter {
	tables := make(map[string][]ir.Row)
	for _, t := range schema.Tables() {
		tables[t.Name] = nil
	}
	return &FakeAdapter{schema: schema, tables: tables, queryBudget: -1}
}

// Seed stores rows directly, bypassing the engine. Missing nullable
// columns are filled with Null.
func (f *FakeAdapter) Seed(table string, rows ...ir.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		if _, err := f.insert(table, row); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns a copy of every stored row of table in primary-key order.
func (f *FakeAdapter) Rows(table string) ir.ResultSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, _ := f.schema.Table(table)
	out := make(ir.ResultSet, 0, len(f.tables[table]))
	for _, row := range f.tables[table] {
		out = append(out, row.Clone())
	}
	slices.SortStableFunc(out, func(a, b ir.Row) int {
		return queryir.CompareRows(a, b, nil, ts.PrimaryKey().Name)
	})
	return out
}

// ForbidRequery allows n more ExecuteQuery calls; later calls fail with
// ErrUnexpectedRequery.
func (f *FakeAdapter) ForbidRequery(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryBudget = n
}

// AllowRequery lifts ForbidRequery.
func (f *FakeAdapter) AllowRequery() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryBudget = -1
}

// SetReportKeys controls whether updates and deletes report affected keys.
func (f *FakeAdapter) SetReportKeys(report bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideKeys = !report
}

// FailLookups makes every PointLookup return err. nil restores lookups.
func (f *FakeAdapter) FailLookups(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupErr = err
}

// FailAll makes every call return err wrapped in store.ErrConnection.
func (f *FakeAdapter) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: %w", store.ErrConnection, err)
	}
	f.allErr = err
}

// OnLookup installs a hook that runs before each point lookup reads
// storage. The hook runs without the adapter lock held, so it may call
// other adapter methods.
func (f *FakeAdapter) OnLookup(hook func(store.PointLookup)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onLookup = hook
}

// Queries returns the number of ExecuteQuery calls.
func (f *FakeAdapter) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Mutations returns the number of ExecuteMutation calls.
func (f *FakeAdapter) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

// Lookups returns the number of PointLookup calls.
func (f *FakeAdapter) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// Closed reports whether Close was called.
func (f *FakeAdapter) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ExecuteQuery implements store.Adapter.
func (f *FakeAdapter) ExecuteQuery(ctx context.Context, q queryir.QuerySpec) (ir.ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	if f.allErr != nil {
		return nil, f.allErr
	}
	if f.queryBudget == 0 {
		return nil, ErrUnexpectedRequery
	}
	if f.queryBudget > 0 {
		f.queryBudget--
	}

	table, ok := f.schema.Table(q.Table)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", q.Table)
	}

	matched := ir.ResultSet{}
	for _, row := range f.tables[q.Table] {
		ok, err := queryir.Evaluate(q.Filter, row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}
	pk := table.PrimaryKey().Name
	slices.SortStableFunc(matched, func(a, b ir.Row) int {
		return queryir.CompareRows(a, b, q.Order, pk)
	})

	switch q.Mode.Kind {
	case queryir.FetchOne:
		matched = matched[:min(len(matched), 2)]
	case queryir.FetchFirst:
		matched = matched[:min(len(matched), 1)]
	case queryir.FetchMany:
		matched = matched[:min(len(matched), q.Mode.Limit)]
	}
	return matched.Project(q.Columns), nil
}

// ExecuteMutation implements store.Adapter.
func (f *FakeAdapter) ExecuteMutation(ctx context.Context, m queryir.MutationSpec) (store.MutationOutcome, error) {
	if err := ctx.Err(); err != nil {
		return store.MutationOutcome{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mutations++
	if f.allErr != nil {
		return store.MutationOutcome{}, f.allErr
	}
	table, ok := f.schema.Table(m.Table)
	if !ok {
		return store.MutationOutcome{}, fmt.Errorf("unknown table %q", m.Table)
	}

	var returned ir.ResultSet
	switch m.Kind {
	case queryir.MutationInsert:
		row, err := f.insert(m.Table, m.Values)
		if err != nil {
			return store.MutationOutcome{}, err
		}
		returned = ir.ResultSet{row.Clone()}
	case queryir.MutationUpdate:
		updated, err := f.update(table, m)
		if err != nil {
			return store.MutationOutcome{}, err
		}
		returned = updated
	case queryir.MutationDelete:
		deleted, err := f.delete(table, m.Filter)
		if err != nil {
			return store.MutationOutcome{}, err
		}
		returned = deleted
	}

	out := store.BuildOutcome(table, m.Kind, returned)
	if f.hideKeys && m.Kind != queryir.MutationInsert {
		out = store.MutationOutcome{RowsAffected: out.RowsAffected}
	}
	return out, nil
}

// PointLookup implements store.Adapter.
func (f *FakeAdapter) PointLookup(ctx context.Context, l store.PointLookup) (ir.Row, bool, error) {
	f.mu.Lock()
	f.lookups++
	hook := f.onLookup
	f.mu.Unlock()

	if hook != nil {
		hook(l)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allErr != nil {
		return nil, false, f.allErr
	}
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	table, ok := f.schema.Table(l.Table)
	if !ok {
		return nil, false, fmt.Errorf("unknown table %q", l.Table)
	}

	i := f.find(l.Table, table.PrimaryKey().Name, l.Key)
	if i < 0 {
		return nil, false, nil
	}
	row := f.tables[l.Table][i]
	match, err := queryir.Evaluate(l.Filter, row)
	if err != nil {
		return nil, false, err
	}
	if !match {
		return nil, false, nil
	}
	return row.Project(l.Columns), true, nil
}

// Close implements store.Adapter.
func (f *FakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// insert stores row in table column order. f.mu must be held.
func (f *FakeAdapter) insert(tableName string, values ir.Row) (ir.Row, error) {
	table, ok := f.schema.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", tableName)
	}

	row := make(ir.Row, 0, len(table.Columns))
	for _, col := range table.Columns {
		v, ok := values.Get(col.Name)
		if !ok || v == nil {
			v = ir.Null{}
		}
		if ir.IsNull(v) && !col.Nullable {
			return nil, fmt.Errorf("insert %s: NOT NULL constraint failed: %s", tableName, col.Name)
		}
		row = append(row, ir.Field{Column: col.Name, Value: v})
	}
	if err := f.checkUnique(table, row, -1); err != nil {
		return nil, err
	}
	f.tables[tableName] = append(f.tables[tableName], row)
	return row, nil
}

// update applies m to every matching row. f.mu must be held.
func (f *FakeAdapter) update(table *ir.TableSchema, m queryir.MutationSpec) (ir.ResultSet, error) {
	rows := f.tables[table.Name]
	next := make([]ir.Row, len(rows))
	copy(next, rows)

	updated := ir.ResultSet{}
	for i, row := range rows {
		ok, err := queryir.Evaluate(m.Filter, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		merged, err := queryir.Apply(m.Set, row)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", table.Name, err)
		}
		next[i] = merged
		updated = append(updated, merged.Clone())
	}

	for i, row := range next {
		if err := checkUniqueIn(table, next, row, i); err != nil {
			return nil, err
		}
	}
	f.tables[table.Name] = next
	return updated, nil
}

// delete removes every matching row and returns their primary keys.
// f.mu must be held.
func (f *FakeAdapter) delete(table *ir.TableSchema, filter queryir.Predicate) (ir.ResultSet, error) {
	pk := table.PrimaryKey().Name
	var kept []ir.Row
	deleted := ir.ResultSet{}
	for _, row := range f.tables[table.Name] {
		ok, err := queryir.Evaluate(filter, row)
		if err != nil {
			return nil, err
		}
		if ok {
			deleted = append(deleted, row.Project([]string{pk}))
			continue
		}
		kept = append(kept, row)
	}
	f.tables[table.Name] = kept
	return deleted, nil
}

func (f *FakeAdapter) find(table, pk string, key ir.Value) int {
	for i, row := range f.tables[table] {
		if v, ok := row.Get(pk); ok && ir.Equal(v, key) {
			return i
		}
	}
	return -1
}

func (f *FakeAdapter) checkUnique(table *ir.TableSchema, row ir.Row, self int) error {
	return checkUniqueIn(table, f.tables[table.Name], row, self)
}

// checkUniqueIn reports a store.ErrConflict if row collides with any
// other row of rows on the primary key or a unique column.
func checkUniqueIn(table *ir.TableSchema, rows []ir.Row, row ir.Row, self int) error {
	for _, col := range table.Columns {
		if !col.PrimaryKey && !col.Unique {
			continue
		}
		v, _ := row.Get(col.Name)
		if ir.IsNull(v) {
			continue
		}
		for i, other := range rows {
			if i == self {
				continue
			}
			if ov, ok := other.Get(col.Name); ok && ir.Equal(v, ov) {
				return fmt.Errorf("%s.%s: %w", table.Name, col.Name, store.ErrConflict)
			}
		}
	}
	return nil
}
