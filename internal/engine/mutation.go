package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
)

// Mutate commits m and merges the resulting event into every
// subscription on m's table before returning it.
//
// An Update with no assignments is a no-op: nothing is sent to the
// adapter and no subscription is notified. A mutation that affects no
// rows is not broadcast and its event has Seq 0.
//
// Errors:
//   - CodeInvalidSpec if m does not fit the schema
//   - CodeMutationConflict on a primary-key or unique violation
//   - CodeQueryExecution or CodeConnection from the adapter
//   - CodeSubscriptionClosed after Close
func (db *Database) Mutate(ctx context.Context, m queryir.MutationSpec) (MutationEvent, error) {
	if err := db.checkOpen(m.Table); err != nil {
		return MutationEvent{}, err
	}
	if errs := queryir.ValidateMutation(m, db.schema); len(errs) > 0 {
		return MutationEvent{}, &Error{Code: CodeInvalidSpec, Message: "invalid mutation", Table: m.Table, Err: errs}
	}
	if m.Kind == queryir.MutationUpdate && len(m.Set) == 0 {
		db.logger.Debug("skipped update without assignments", "table", m.Table)
		return MutationEvent{Table: m.Table, Kind: m.Kind}, nil
	}

	ev, lookups, err := db.commit(ctx, m)
	if err != nil {
		return MutationEvent{}, err
	}
	db.resolveLookups(ctx, m.Table, lookups)

	MutationsTotal.WithLabelValues(m.Table, m.Kind.String()).Inc()
	if db.hook != nil {
		db.hook(ev)
	}
	return ev, nil
}

// commit executes m and broadcasts its event under the table lock.
func (db *Database) commit(ctx context.Context, m queryir.MutationSpec) (MutationEvent, []lookupRequest, error) {
	unlock := db.locks.lock(m.Table)
	defer unlock()

	out, err := db.adapter.ExecuteMutation(ctx, m)
	if err != nil {
		return MutationEvent{}, nil, db.adapterFailure("mutation", m.Table, err)
	}

	ev := newMutationEvent(m, out)
	if ev.RowsAffected == 0 {
		return ev, nil, nil
	}
	ev.Seq = db.clocks[m.Table].Next()
	return ev, db.broadcast(&ev), nil
}

// broadcast merges ev into every subscription on its table in parallel and
// waits for all merges. Requires the table lock.
func (db *Database) broadcast(ev *MutationEvent) []lookupRequest {
	subs := db.registry.forTable(ev.Table)
	if len(subs) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		BroadcastDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	results := make([][]lookupRequest, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		db.submit(&wg, func() {
			lookups, outcome := sub.merge(ev)
			MergesTotal.WithLabelValues(outcome).Inc()
			results[i] = lookups
		})
	}
	wg.Wait()

	var lookups []lookupRequest
	for _, r := range results {
		lookups = append(lookups, r...)
	}
	return lookups
}

type lookupResult struct {
	row   ir.Row
	found bool
	err   error
}

// resolveLookups runs point lookups with no engine lock held, then applies
// their results under the table lock. A failed lookup leaves the cache
// unchanged; a connection failure also closes every subscription.
func (db *Database) resolveLookups(ctx context.Context, table string, lookups []lookupRequest) {
	if len(lookups) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, db.lookupTimeout)
	defer cancel()

	results := make([]lookupResult, len(lookups))
	var wg sync.WaitGroup
	for i, req := range lookups {
		db.submit(&wg, func() {
			row, found, err := db.adapter.PointLookup(ctx, store.PointLookup{
				Table:   table,
				Key:     req.key,
				Columns: req.sub.internal,
				Filter:  req.sub.spec.Predicate(),
			})
			results[i] = lookupResult{row: row, found: found, err: err}
		})
	}
	wg.Wait()

	var connErr error
	unlock := db.locks.lock(table)
	for i, req := range lookups {
		r := results[i]
		if r.err != nil {
			PointLookupsTotal.WithLabelValues(LookupError).Inc()
			db.logger.Warn("point lookup failed, keeping cached result",
				"subscription", req.sub.id,
				"table", table,
				"key", ir.KeyString(req.key),
				"error", r.err,
			)
			req.sub.abandonLookup(req)
			if store.IsConnection(r.err) {
				connErr = r.err
			}
			continue
		}
		PointLookupsTotal.WithLabelValues(req.sub.applyLookup(req, r.row, r.found)).Inc()
	}
	unlock()

	if connErr != nil {
		db.adapterFailure("point lookup", table, connErr)
	}
}
