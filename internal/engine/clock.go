package engine

import "sync/atomic"

// Clock is a monotonic logical clock. Each table has one; its value is
// the sequence number of the table's last broadcast mutation.
//
// All events are stamped from the clock, never from wall time, so the
// order in which subscriptions observe a table's events is explicit.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Next is only called under the table lock, so sequence order equals
// commit order.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
// Subscribe records it as the subscription's last observed event.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// tableClocks holds one Clock per schema table. The map is built once at
// Open and never written afterwards.
type tableClocks map[string]*Clock

func newTableClocks(tables []string) tableClocks {
	clocks := make(tableClocks, len(tables))
	for _, t := range tables {
		clocks[t] = NewClock()
	}
	return clocks
}
