package engine

import (
	"context"
	"slices"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// Query runs q once and applies its fetch-mode contract.
//
// Errors:
//   - CodeInvalidSpec if q does not fit the schema
//   - CodeZeroRows / CodeMultipleRows on a cardinality violation
//   - CodeQueryExecution or CodeConnection from the adapter
//   - CodeSubscriptionClosed after Close
func (db *Database) Query(ctx context.Context, q queryir.QuerySpec) (ir.ResultSet, error) {
	if err := db.checkOpen(q.Table); err != nil {
		return nil, err
	}
	if _, err := db.validateQuery(q); err != nil {
		return nil, err
	}
	return db.fetch(ctx, q)
}

// Subscribe runs q and returns a Subscription that tracks its result.
//
// The seed query and registration happen under the table lock, so the
// subscription observes every mutation committed after its seed and none
// before. Fails like Query, including the cardinality contract.
func (db *Database) Subscribe(ctx context.Context, q queryir.QuerySpec) (*Subscription, error) {
	if err := db.checkOpen(q.Table); err != nil {
		return nil, err
	}
	table, err := db.validateQuery(q)
	if err != nil {
		return nil, err
	}

	internal := internalColumns(q, table)
	seedSpec := q
	seedSpec.Columns = internal

	unlock := db.locks.lock(q.Table)
	defer unlock()

	seed, err := db.fetch(ctx, seedSpec)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(db, db.ids.NewID(), q, table, internal, seed, db.clocks[q.Table].Current())
	db.registry.add(sub)
	SubscriptionsActive.Inc()

	// Close may have swept the registry before the add.
	if db.closed.Load() {
		sub.close(ErrDatabaseClosed)
		return nil, newClosedError(q.Table, ErrDatabaseClosed)
	}

	db.logger.Info("subscription opened",
		"subscription", sub.id,
		"table", q.Table,
		"mode", q.Mode.String(),
		"rows", len(seed),
	)
	return sub, nil
}

func (db *Database) validateQuery(q queryir.QuerySpec) (*ir.TableSchema, error) {
	if errs := queryir.ValidateQuery(q, db.schema); len(errs) > 0 {
		return nil, &Error{Code: CodeInvalidSpec, Message: "invalid query", Table: q.Table, Err: errs}
	}
	table, _ := db.schema.Table(q.Table)
	return table, nil
}

// fetch executes q on the adapter and applies the fetch mode.
func (db *Database) fetch(ctx context.Context, q queryir.QuerySpec) (ir.ResultSet, error) {
	rows, err := db.adapter.ExecuteQuery(ctx, q)
	if err != nil {
		return nil, db.adapterFailure("query", q.Table, err)
	}
	return applyCardinality(q, rows)
}

// applyCardinality enforces the fetch mode on rows as returned by the
// adapter:
//   - One: exactly one row
//   - First: at least one row, keeps the first
//   - Many(n): at most n rows
//   - All: unchanged
func applyCardinality(q queryir.QuerySpec, rows ir.ResultSet) (ir.ResultSet, error) {
	switch q.Mode.Kind {
	case queryir.FetchOne:
		switch {
		case len(rows) == 0:
			return nil, newCardinalityError(CodeZeroRows, q.Table, 0)
		case len(rows) > 1:
			return nil, newCardinalityError(CodeMultipleRows, q.Table, len(rows))
		}
	case queryir.FetchFirst:
		if len(rows) == 0 {
			return nil, newCardinalityError(CodeZeroRows, q.Table, 0)
		}
		rows = rows[:1]
	case queryir.FetchMany:
		if len(rows) > q.Mode.Limit {
			rows = rows[:q.Mode.Limit]
		}
	}
	return rows, nil
}

// internalColumns returns the columns a subscription caches: the
// projection, then the order columns, the primary key and the filter
// columns not already listed.
func internalColumns(q queryir.QuerySpec, table *ir.TableSchema) []string {
	cols := slices.Clone(q.Columns)
	add := func(col string) {
		if !slices.Contains(cols, col) {
			cols = append(cols, col)
		}
	}
	for _, col := range queryir.OrderColumns(q.Order, table.PrimaryKey().Name) {
		add(col)
	}
	for _, col := range queryir.Columns(q.Filter) {
		add(col)
	}
	return cols
}
