// Package harness runs scenario files against a real engine backed by an
// in-memory SQLite database.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: adults_follow_updates
//	description: "Adults subscription tracks age changes"
//	schema: ../schemas/users.cue
//	setup:
//	  - insert: users
//	    values: {id: 1, name: ada, email: ada@example.com, age: 36}
//	subscriptions:
//	  - name: adults
//	    query:
//	      table: users
//	      select: [id, name]
//	      where: {column: age, op: ">=", value: 18}
//	      order: [name]
//	steps:
//	  - mutate:
//	      update: users
//	      set: {age: 12}
//	      where: {column: id, op: "=", value: 1}
//	  - close: adults
//	assertions:
//	  - type: consistent
//	  - type: rows
//	    subscription: adults
//	    rows: [{id: 2, name: bob}]
//
// Setup mutations run before any subscription is opened. Steps run in
// order; after each one every open subscription is drained of pending
// notifications so the trace records exactly which step caused which
// change.
//
// # Assertion Types
//
//   - consistent: each open subscription equals a fresh query of its spec
//   - rows: the subscription's rows, compared on the listed columns
//   - count: the subscription holds exactly count rows
//   - notified: the subscription saw exactly count change notifications
//   - conflicts: the subscription saw exactly count merge conflicts
//   - closed: the subscription is closed
//
// # Deterministic Testing
//
// Subscription IDs come from testutil.SequentialIDs and every scenario
// gets a fresh database, so traces are byte-identical across runs and can
// be compared against golden snapshots.
package harness
