package engine

import (
	"sort"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// resultCache is a subscription's materialized result: rows in query order
// plus an index by primary key.
//
// Rows carry the subscription's internal columns. The seed result is kept
// in the order storage returned it; later inserts are positioned with
// queryir.CompareRows.
//
// Not safe for concurrent use. Guarded by Subscription.mu.
type resultCache struct {
	order []queryir.OrderBy
	pk    string
	rows  []ir.Row
	byKey map[string]ir.Row
}

func newResultCache(seed ir.ResultSet, order []queryir.OrderBy, pk string) *resultCache {
	c := &resultCache{
		order: order,
		pk:    pk,
		rows:  make([]ir.Row, 0, len(seed)),
		byKey: make(map[string]ir.Row, len(seed)),
	}
	for _, row := range seed {
		c.rows = append(c.rows, row)
		c.byKey[c.keyOf(row)] = row
	}
	return c
}

func (c *resultCache) len() int { return len(c.rows) }

func (c *resultCache) keyOf(row ir.Row) string {
	v, _ := row.Get(c.pk)
	return ir.KeyString(v)
}

// get returns the cached row for key.
func (c *resultCache) get(key ir.Value) (ir.Row, bool) {
	row, ok := c.byKey[ir.KeyString(key)]
	return row, ok
}

// insert positions row by the query order. The key must not be cached.
func (c *resultCache) insert(row ir.Row) {
	i := sort.Search(len(c.rows), func(i int) bool {
		return queryir.CompareRows(c.rows[i], row, c.order, c.pk) > 0
	})
	c.rows = append(c.rows, nil)
	copy(c.rows[i+1:], c.rows[i:])
	c.rows[i] = row
	c.byKey[c.keyOf(row)] = row
}

// leads reports whether row would sort before every cached row.
func (c *resultCache) leads(row ir.Row) bool {
	for _, r := range c.rows {
		if queryir.CompareRows(row, r, c.order, c.pk) >= 0 {
			return false
		}
	}
	return true
}

// remove drops the row for key. It reports whether a row was removed.
func (c *resultCache) remove(key ir.Value) bool {
	ks := ir.KeyString(key)
	row, ok := c.byKey[ks]
	if !ok {
		return false
	}
	i := c.index(row)
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	delete(c.byKey, ks)
	return true
}

// replace swaps the cached row with the same key for row and moves it if
// its order columns changed.
func (c *resultCache) replace(row ir.Row) {
	key, _ := row.Get(c.pk)
	c.remove(key)
	c.insert(row)
}

// index finds row's position. It tries a binary search first and falls
// back to a scan, since the seed order may come from a collation that
// CompareRows does not reproduce.
func (c *resultCache) index(row ir.Row) int {
	ks := c.keyOf(row)
	i := sort.Search(len(c.rows), func(i int) bool {
		return queryir.CompareRows(c.rows[i], row, c.order, c.pk) >= 0
	})
	if i < len(c.rows) && c.keyOf(c.rows[i]) == ks {
		return i
	}
	for j, r := range c.rows {
		if c.keyOf(r) == ks {
			return j
		}
	}
	return -1
}

// project returns the cached rows restricted to cols.
func (c *resultCache) project(cols []string) ir.ResultSet {
	out := make(ir.ResultSet, len(c.rows))
	for i, row := range c.rows {
		out[i] = row.Project(cols)
	}
	return out
}

// each calls fn for a snapshot of the cached rows, so fn may mutate the
// cache.
func (c *resultCache) each(fn func(row ir.Row)) {
	rows := make([]ir.Row, len(c.rows))
	copy(rows, c.rows)
	for _, row := range rows {
		fn(row)
	}
}
