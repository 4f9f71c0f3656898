// Package queryir provides the typed descriptors for reads and writes
// against a notitia table, and the row-level predicate evaluator the merge
// engine relies on.
//
// ARCHITECTURE:
//
//	[builders] → [QuerySpec / MutationSpec] → [querysql] → [store adapter]
//	                                        → [Evaluate]  (incremental merge)
//
// A QuerySpec is executed once against storage; after that, the engine keeps
// its result current by evaluating the same Predicate against rows carried
// by mutation events. For that to be sound, Evaluate must agree with the SQL
// the querysql package emits for the same predicate.
//
// SEALED INTERFACES:
//
// Predicate and Expr are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, which keeps the evaluator,
// the validator and the SQL compiler exhaustive.
//
// NULL SEMANTICS:
//
// Comparisons with NULL on either side are unknown. Unknown propagates
// through And, Or and Not exactly as in SQL and is treated as "no match"
// at the root. In particular:
//
//	Compare{age <> 5}        on age = NULL  → no match
//	Not{Compare{age = 5}}    on age = NULL  → no match
//
// MISSING COLUMNS:
//
// Rows handed to Evaluate may be partial. A predicate whose outcome depends
// on a column the row lacks returns MissingColumnError instead of false.
// And/Or only report it when the other operand does not already decide the
// result, e.g. And{false, missing} is simply false.
package queryir
