package engine

import (
	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
)

// MutationEvent describes a committed mutation. It is what subscriptions
// merge and what Mutate returns.
//
// Fields by kind:
//   - Insert: Row is the stored row
//   - Update: Set, and Keys plus the merged Rows when KeysKnown
//   - Delete: Keys when KeysKnown
//
// When KeysKnown is false the event carries the mutation's Filter instead.
type MutationEvent struct {
	Table        string
	Kind         queryir.MutationKind
	Seq          int64 // per-table sequence number; 0 when nothing was broadcast
	RowsAffected int

	Row       ir.Row
	Set       []queryir.Assignment
	KeysKnown bool
	Keys      []ir.Value
	Rows      []ir.Row
	Filter    queryir.Predicate
}

func newMutationEvent(m queryir.MutationSpec, out store.MutationOutcome) MutationEvent {
	ev := MutationEvent{
		Table:        m.Table,
		Kind:         m.Kind,
		RowsAffected: out.RowsAffected,
		KeysKnown:    out.KeysKnown,
	}
	switch m.Kind {
	case queryir.MutationInsert:
		ev.Row = out.Inserted
		if ev.Row == nil {
			ev.Row = m.Values
		}
		ev.KeysKnown = true
	case queryir.MutationUpdate:
		ev.Set = m.Set
		if out.KeysKnown {
			ev.Keys = out.Keys
			ev.Rows = out.Rows
		} else {
			ev.Filter = m.Predicate()
		}
	case queryir.MutationDelete:
		if out.KeysKnown {
			ev.Keys = out.Keys
		} else {
			ev.Filter = m.Predicate()
		}
	}
	return ev
}

// filterOnly reports whether the event identifies rows by filter rather
// than by key.
func (e *MutationEvent) filterOnly() bool {
	return e.Kind != queryir.MutationInsert && !e.KeysKnown
}

// Summary renders the event for ir.MarshalCanonical.
func (e MutationEvent) Summary() map[string]any {
	out := map[string]any{
		"table":         e.Table,
		"kind":          e.Kind.String(),
		"seq":           e.Seq,
		"rows_affected": e.RowsAffected,
		"keys_known":    e.KeysKnown,
	}
	if e.Row != nil {
		out["row"] = e.Row
	}
	if e.KeysKnown && e.Kind != queryir.MutationInsert {
		keys := make([]any, len(e.Keys))
		for i, k := range e.Keys {
			keys[i] = k
		}
		out["keys"] = keys
	}
	if len(e.Rows) > 0 {
		rows := make([]any, len(e.Rows))
		for i, r := range e.Rows {
			rows[i] = r
		}
		out["rows"] = rows
	}
	return out
}
