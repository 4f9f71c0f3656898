package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

var (
	// ErrConnection marks failures to reach storage. The engine closes
	// every subscription when it sees one.
	ErrConnection = errors.New("storage connection failed")

	// ErrConflict marks primary-key and unique-constraint violations.
	ErrConflict = errors.New("constraint violation")
)

// Adapter executes specs against a relational store.
//
// Specs passed to an Adapter have already been validated against the
// schema it was opened with.
type Adapter interface {
	ExecuteQuery(ctx context.Context, q queryir.QuerySpec) (ir.ResultSet, error)
	ExecuteMutation(ctx context.Context, m queryir.MutationSpec) (MutationOutcome, error)

	// PointLookup fetches the row with the given key if it satisfies the
	// lookup filter. found is false when the row is gone or filtered out.
	PointLookup(ctx context.Context, l PointLookup) (row ir.Row, found bool, err error)

	Close() error
}

// MutationOutcome reports what a committed mutation changed.
type MutationOutcome struct {
	RowsAffected int

	// KeysKnown is false when the adapter cannot say which rows it
	// touched. Keys and Rows are empty in that case.
	KeysKnown bool
	Keys      []ir.Value

	// Rows holds the full post-update row for each entry in Keys. Only
	// populated for updates.
	Rows []ir.Row

	// Inserted is the stored row for an insert, as read back from storage.
	Inserted ir.Row
}

// PointLookup describes a single-key fetch.
type PointLookup struct {
	Table   string
	Key     ir.Value
	Columns []string
	Filter  queryir.Predicate
}

// Opener opens an Adapter for uri and creates the schema's tables.
type Opener func(ctx context.Context, uri string, schema *ir.Schema) (Adapter, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes an adapter available to Connect under scheme. It panics
// if the scheme is registered twice.
func Register(scheme string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if open == nil {
		panic("store: Register opener is nil")
	}
	if _, dup := drivers[scheme]; dup {
		panic("store: Register called twice for scheme " + scheme)
	}
	drivers[scheme] = open
}

// Schemes returns the registered URI schemes, sorted.
func Schemes() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for s := range drivers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Connect opens the adapter registered for uri's scheme. ":memory:" and
// bare file paths select SQLite.
func Connect(ctx context.Context, uri string, schema *ir.Schema) (Adapter, error) {
	scheme := uriScheme(uri)

	driversMu.RLock()
	open, ok := drivers[scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for scheme %q", ErrConnection, scheme)
	}
	return open(ctx, uri, schema)
}

func uriScheme(uri string) string {
	if uri == ":memory:" {
		return "sqlite"
	}
	i := strings.Index(uri, ":")
	if i <= 0 || strings.ContainsAny(uri[:i], `/\.`) {
		return "sqlite"
	}
	// Windows drive letters.
	if i == 1 {
		return "sqlite"
	}
	return strings.ToLower(uri[:i])
}

// IsConflict reports whether err is a constraint violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsConnection reports whether err is a connection failure.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// ResolveColumns maps names to the table's column definitions.
func ResolveColumns(table *ir.TableSchema, names []string) ([]ir.Column, error) {
	cols := make([]ir.Column, len(names))
	for i, name := range names {
		col, ok := table.Column(name)
		if !ok {
			return nil, fmt.Errorf("table %q has no column %q", table.Name, name)
		}
		cols[i] = col
	}
	return cols, nil
}
