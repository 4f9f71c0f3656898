package engine

import (
	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// lookupRequest asks for one row by primary key on behalf of a
// subscription whose cached data could not decide membership.
type lookupRequest struct {
	sub *Subscription
	key ir.Value
	seq int64 // event that scheduled the lookup
}

// merger applies one event to one subscription. Requires sub.mu.
type merger struct {
	s          *Subscription
	ev         *MutationEvent // nil when applying a lookup result
	lookups    []lookupRequest
	conflicted bool
}

// merge applies ev to the subscription's cache and publishes a new
// snapshot if the visible result changed. It returns the point lookups the
// event requires, which the caller runs after releasing the table lock.
//
// The caller holds the table lock, so events arrive in commit order.
func (s *Subscription) merge(ev *MutationEvent) ([]lookupRequest, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() || ev.Seq <= s.lastSeq {
		return nil, MergeUnchanged
	}
	s.lastSeq = ev.Seq

	m := &merger{s: s, ev: ev}
	switch {
	case ev.Kind == queryir.MutationInsert:
		m.insert(ev.Row)
	case ev.filterOnly():
		// This event may have changed any pending key, so results of
		// earlier lookups are stale. Ask again as of this event.
		m.reschedule()
		if ev.Kind == queryir.MutationUpdate {
			m.updateByFilter(ev.Filter, ev.Set)
		} else {
			m.deleteByFilter(ev.Filter)
		}
	case ev.Kind == queryir.MutationUpdate:
		m.updateKeys(ev.Keys, ev.Rows, ev.Set)
	case ev.Kind == queryir.MutationDelete:
		m.deleteKeys(ev.Keys)
	}

	outcome := m.outcome(s.publish())
	s.db.logger.Debug("merged event",
		"subscription", s.id,
		"table", ev.Table,
		"kind", ev.Kind.String(),
		"seq", ev.Seq,
		"outcome", outcome,
		"lookups", len(m.lookups),
	)
	return m.lookups, outcome
}

// applyLookup applies a point-lookup result. The caller holds the table
// lock. A result is dropped as stale if any event touched the key after
// the lookup was scheduled.
func (s *Subscription) applyLookup(req lookupRequest, row ir.Row, found bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks := ir.KeyString(req.key)
	if s.closed() || s.pending[ks].seq != req.seq {
		return LookupStale
	}
	delete(s.pending, ks)

	m := &merger{s: s}
	if found {
		m.upsert(req.key, row.Project(s.internal))
	} else {
		s.cache.remove(req.key)
	}
	s.publish()
	if found {
		return LookupFound
	}
	return LookupMissing
}

// abandonLookup forgets a lookup that failed, leaving the cache as is.
func (s *Subscription) abandonLookup(req lookupRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks := ir.KeyString(req.key)
	if s.pending[ks].seq == req.seq {
		delete(s.pending, ks)
	}
}

func (m *merger) outcome(changed bool) string {
	switch {
	case m.conflicted:
		return MergeConflict
	case changed:
		return MergeApplied
	case len(m.lookups) > 0:
		return MergeDeferred
	default:
		return MergeUnchanged
	}
}

// insert merges an inserted row.
func (m *merger) insert(row ir.Row) {
	key, ok := row.Get(m.s.pk)
	if !ok {
		return
	}
	m.touch(key)
	m.upsert(key, row.Project(m.s.internal))
}

// updateKeys merges an update whose affected keys are known. rows holds
// the merged row per key when the adapter returned them.
func (m *merger) updateKeys(keys []ir.Value, rows []ir.Row, set []queryir.Assignment) {
	for i, key := range keys {
		m.touch(key)
		var merged ir.Row
		if i < len(rows) {
			merged = rows[i]
		}

		cached, ok := m.s.cache.get(key)
		switch {
		case ok && merged != nil:
			m.upsert(key, cached.Merge(merged))
		case ok:
			candidate, err := queryir.Apply(set, cached)
			if err != nil {
				m.undecided(key, err)
				continue
			}
			m.upsert(key, candidate.Project(m.s.internal))
		case merged != nil:
			m.upsert(key, merged.Project(m.s.internal))
		default:
			m.lookup(key)
		}
	}
}

// updateByFilter merges an update whose keys are unknown. Only cached rows
// are considered: rows that start matching are not detected.
func (m *merger) updateByFilter(filter queryir.Predicate, set []queryir.Assignment) {
	m.s.cache.each(func(row ir.Row) {
		key, _ := row.Get(m.s.pk)
		hit, err := queryir.Evaluate(filter, row)
		if err != nil {
			m.undecided(key, err)
			return
		}
		if !hit {
			return
		}
		candidate, err := queryir.Apply(set, row)
		if err != nil {
			m.undecided(key, err)
			return
		}
		m.upsert(key, candidate.Project(m.s.internal))
	})
}

func (m *merger) deleteKeys(keys []ir.Value) {
	for _, key := range keys {
		m.touch(key)
		m.s.cache.remove(key)
	}
}

// deleteByFilter removes the cached rows the delete filter matches.
func (m *merger) deleteByFilter(filter queryir.Predicate) {
	m.s.cache.each(func(row ir.Row) {
		key, _ := row.Get(m.s.pk)
		hit, err := queryir.Evaluate(filter, row)
		if err != nil {
			m.undecided(key, err)
			return
		}
		if hit {
			m.s.cache.remove(key)
		}
	})
}

// upsert decides membership of candidate, a row carrying the
// subscription's internal columns:
//   - match and cached: replace, repositioning if needed
//   - match and not cached: admit under the fetch-mode capacity
//   - no match: remove if cached
func (m *merger) upsert(key ir.Value, candidate ir.Row) {
	if len(candidate) < len(m.s.internal) {
		m.lookup(key)
		return
	}
	match, err := queryir.Evaluate(m.s.spec.Filter, candidate)
	if err != nil {
		m.undecided(key, err)
		return
	}

	_, cached := m.s.cache.get(key)
	switch {
	case !match:
		m.s.cache.remove(key)
	case cached:
		m.s.cache.replace(candidate)
	default:
		m.admit(key, candidate)
	}
}

func (m *merger) admit(key ir.Value, row ir.Row) {
	mode := m.s.spec.Mode
	limit := mode.Capacity()
	switch {
	case limit < 0 || m.s.cache.len() < limit:
		m.s.cache.insert(row)
	case mode.Kind == queryir.FetchMany:
		// At capacity. The row stays unobserved until the next subscribe.
	case mode.Kind == queryir.FetchFirst && !m.s.cache.leads(row):
		// Sorts after the held row, so the first row is unchanged.
	default:
		m.conflicted = true
		m.s.conflict(key)
	}
}

// undecided handles a row whose membership could not be computed locally.
// Missing columns schedule a lookup; other evaluation errors leave the
// cache unchanged.
func (m *merger) undecided(key ir.Value, err error) {
	if queryir.IsMissingColumn(err) {
		m.lookup(key)
		return
	}
	m.s.db.logger.Warn("merge could not evaluate row",
		"subscription", m.s.id,
		"key", ir.KeyString(key),
		"error", err,
	)
}

// lookup schedules a point lookup for key, at most once per event.
// Lookup results are never followed by another lookup.
func (m *merger) lookup(key ir.Value) {
	if m.ev == nil {
		return
	}
	ks := ir.KeyString(key)
	if req, ok := m.s.pending[ks]; ok && req.seq == m.ev.Seq {
		return
	}
	req := lookupRequest{sub: m.s, key: key, seq: m.ev.Seq}
	m.s.pending[ks] = req
	m.lookups = append(m.lookups, req)
}

// reschedule moves every pending lookup to the current event.
func (m *merger) reschedule() {
	for _, req := range m.s.pending {
		m.lookup(req.key)
	}
}

// touch invalidates any lookup pending for key.
func (m *merger) touch(key ir.Value) {
	delete(m.s.pending, ir.KeyString(key))
}
