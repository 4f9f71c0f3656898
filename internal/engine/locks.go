package engine

import "sync"

// tableLocks hands out one mutex per table.
//
// The table lock spans two critical sections that must not interleave:
//   - commit, build event, broadcast, wait for merges (Mutate)
//   - seed query, register (Subscribe)
//
// Point-lookup results are also applied under it.
type tableLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTableLocks() *tableLocks {
	return &tableLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the table's mutex and returns its unlock function.
func (l *tableLocks) lock(table string) func() {
	l.mu.Lock()
	m, ok := l.locks[table]
	if !ok {
		m = &sync.Mutex{}
		l.locks[table] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
