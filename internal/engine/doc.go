// Package engine implements the reactive subscription and incremental
// merge engine.
//
// A Database wraps a store.Adapter. It executes queries and mutations and
// keeps every live Subscription's cached result in sync with later
// mutations without re-running the query.
//
// ARCHITECTURE:
//
// Mutation Flow:
// 1. Mutate takes the per-table lock and commits through the adapter
// 2. The adapter reports affected keys and merged rows (RETURNING)
// 3. A MutationEvent is stamped with the table's next sequence number
// 4. The registry fans the event out to every subscription on the table
// 5. Each subscription merges the event into its cache and, if the
//    visible result changed, publishes a new snapshot and signals
// 6. The table lock is released; point lookups scheduled by merges run
//    and their results are applied under the table lock again
//
// Subscribe seeds its cache under the same per-table lock, so a
// subscription observes exactly the events committed after its seed query.
//
// CRITICAL PATTERNS:
//
// Per-Table Commit Order
// Broadcast waits for every merge before the table lock is released.
// Every subscription on a table processes that table's events in commit
// order.
//
// Internal Columns
// Cached rows carry the projection, the primary key, the order columns and
// the filter columns. Updates to cached keys are decided locally.
//
// Bounded Fallback
// When local data cannot decide membership the engine fetches exactly one
// row by primary key. A lookup result is discarded if a later event
// touched the key before it was applied.
package engine
