package engine

import (
	"slices"
	"strings"
	"sync"
)

// registry owns the live subscriptions, indexed by table.
type registry struct {
	mu      sync.RWMutex
	byTable map[string]map[string]*Subscription
}

func newRegistry() *registry {
	return &registry{byTable: make(map[string]map[string]*Subscription)}
}

func (r *registry) add(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.byTable[s.spec.Table]
	if !ok {
		subs = make(map[string]*Subscription)
		r.byTable[s.spec.Table] = subs
	}
	subs[s.id] = s
}

// remove unregisters s. It reports false if s was not registered.
func (r *registry) remove(s *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.byTable[s.spec.Table]
	if _, ok := subs[s.id]; !ok {
		return false
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(r.byTable, s.spec.Table)
	}
	return true
}

// forTable returns the subscriptions on table, ordered by ID.
func (r *registry) forTable(table string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedSubs(r.byTable[table])
}

// all returns every subscription, ordered by table then ID.
func (r *registry) all() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Subscription
	for _, subs := range r.byTable {
		out = append(out, sortedSubs(subs)...)
	}
	slices.SortFunc(out, func(a, b *Subscription) int {
		if c := strings.Compare(a.spec.Table, b.spec.Table); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, subs := range r.byTable {
		n += len(subs)
	}
	return n
}

func sortedSubs(subs map[string]*Subscription) []*Subscription {
	out := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Subscription) int { return strings.Compare(a.id, b.id) })
	return out
}
