// Package store provides the storage adapters behind the reactive engine.
//
// An Adapter executes validated query and mutation specs against a
// relational store and reports what a mutation changed:
//   - ExecuteQuery: rows for a QuerySpec, in deterministic order
//   - ExecuteMutation: affected keys and merged rows via RETURNING
//   - PointLookup: one row by primary key, restricted to a filter
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every SELECT ends with ORDER BY <order columns>, <pk> ASC
//   - Identical storage state yields identical row order
//
// Parameterized SQL
//   - SQL text comes from internal/querysql; values are always parameters
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One connection: statements are serialized, so :memory: databases
//     survive for the lifetime of the Store
//
// Adapters are selected by URI scheme through Connect. The SQLite adapter
// registers itself here; PostgreSQL lives in store/pgstore.
package store
