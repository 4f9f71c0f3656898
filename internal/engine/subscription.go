package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// Subscription is a live query whose result is kept in sync with later
// mutations on its table.
//
// Lifecycle: Active until Close, Database.Close or a connection failure,
// then Closed for good. Data stays readable after Close.
//
// Thread-safety: all methods are safe for concurrent use. Merges into one
// subscription are serialized by mu; Data never takes mu.
type Subscription struct {
	id       string
	db       *Database
	spec     queryir.QuerySpec
	table    *ir.TableSchema
	pk       string
	internal []string // projection ∪ pk ∪ order ∪ filter columns

	// Merge state, guarded by mu.
	mu      sync.Mutex
	cache   *resultCache
	lastSeq int64
	pending map[string]lookupRequest // latest lookup per key

	// Notification state, guarded by notifyMu.
	notifyMu     sync.Mutex
	changed      bool
	lastConflict error // latest undelivered merge conflict

	snapshot atomic.Pointer[ir.ResultSet]

	// signal has capacity 1 and coalesces: a send while a signal is
	// already buffered is dropped.
	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	cause     error // written before done is closed
}

func newSubscription(db *Database, id string, spec queryir.QuerySpec, table *ir.TableSchema, internal []string, seed ir.ResultSet, seq int64) *Subscription {
	pk := table.PrimaryKey().Name
	s := &Subscription{
		id:       id,
		db:       db,
		spec:     spec,
		table:    table,
		pk:       pk,
		internal: internal,
		cache:    newResultCache(seed, spec.Order, pk),
		lastSeq:  seq,
		pending:  make(map[string]lookupRequest),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	snap := s.cache.project(spec.Columns)
	s.snapshot.Store(&snap)
	return s
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() string { return s.id }

// Spec returns the query the subscription tracks.
func (s *Subscription) Spec() queryir.QuerySpec { return s.spec }

// Data returns the latest snapshot of the result. The returned slice must
// not be modified. Never blocks.
func (s *Subscription) Data() ir.ResultSet {
	return *s.snapshot.Load()
}

// Changes returns the coalescing change signal for use in select. It
// shares the signal with Recv; a caller should use one or the other.
func (s *Subscription) Changes() <-chan struct{} {
	return s.signal
}

// Done is closed when the subscription closes.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Recv blocks until the result has changed since the last Recv, a merge
// conflict is pending, the subscription closes, or ctx is done.
//
// Returns:
//   - nil when the result changed; read it with Data
//   - a *Error with CodeMutationConflict for the latest undelivered
//     conflict; earlier undelivered ones are dropped
//   - a *Error wrapping ErrSubscriptionClosed once closed, on every call
//   - ctx.Err() when ctx is done
func (s *Subscription) Recv(ctx context.Context) error {
	for {
		select {
		case <-s.done:
			return newClosedError(s.spec.Table, s.cause)
		default:
		}
		if ok, err := s.takeNotification(); ok {
			return err
		}
		select {
		case <-s.signal:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Watch calls fn with the current result and again after every change,
// until the subscription closes (returns nil) or ctx is done (returns
// ctx.Err()). Conflicts are logged and skipped.
func (s *Subscription) Watch(ctx context.Context, fn func(ir.ResultSet)) error {
	fn(s.Data())
	for {
		err := s.Recv(ctx)
		switch {
		case err == nil:
			fn(s.Data())
		case IsMutationConflict(err):
			s.db.logger.Warn("watch skipped merge conflict",
				"subscription", s.id,
				"error", err,
			)
		case IsClosed(err):
			return nil
		default:
			return err
		}
	}
}

// Close unregisters the subscription and wakes any pending Recv. It is
// idempotent and always returns nil.
func (s *Subscription) Close() error {
	s.close(nil)
	return nil
}

// Err returns the error that closed the subscription. It is nil while
// Active and after an explicit Close.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.cause
	default:
		return nil
	}
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) close(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		clear(s.pending)
		s.mu.Unlock()

		s.cause = cause
		close(s.done)
		if s.db.registry.remove(s) {
			SubscriptionsActive.Dec()
		}

		level := slog.LevelInfo
		if IsConnectionError(cause) {
			level = slog.LevelError
		}
		s.db.logger.Log(context.Background(), level, "subscription closed",
			"subscription", s.id,
			"table", s.spec.Table,
			"cause", cause,
		)
	})
}

// takeNotification consumes the pending conflict, or else the pending
// change flag. Once nothing is pending the buffered signal is drained, so
// the signal is raised exactly while a notification is pending.
func (s *Subscription) takeNotification() (bool, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	var err error
	switch {
	case s.lastConflict != nil:
		err = s.lastConflict
		s.lastConflict = nil
	case s.changed:
		s.changed = false
	default:
		return false, nil
	}
	if s.lastConflict == nil && !s.changed {
		select {
		case <-s.signal:
		default:
		}
	}
	return true, err
}

// raise sends the coalescing signal. Requires notifyMu.
func (s *Subscription) raise() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// publish stores a new snapshot and signals if the visible result
// differs from the previous one. Requires s.mu.
func (s *Subscription) publish() bool {
	next := s.cache.project(s.spec.Columns)
	if next.Equal(*s.snapshot.Load()) {
		return false
	}
	s.snapshot.Store(&next)

	s.notifyMu.Lock()
	s.changed = true
	s.raise()
	s.notifyMu.Unlock()
	return true
}

// conflict records a merge conflict for Recv. Like the change flag it
// coalesces: only the latest undelivered conflict is kept.
func (s *Subscription) conflict(key ir.Value) {
	err := &Error{
		Code:    CodeMutationConflict,
		Message: "row " + ir.KeyString(key) + " matches but the " + s.spec.Mode.String() + " result already holds a row",
		Table:   s.spec.Table,
	}
	s.db.logger.Warn("merge conflict",
		"subscription", s.id,
		"table", s.spec.Table,
		"key", ir.KeyString(key),
	)

	s.notifyMu.Lock()
	s.lastConflict = err
	s.raise()
	s.notifyMu.Unlock()
}
