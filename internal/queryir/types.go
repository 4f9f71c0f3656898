package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/notitia/internal/ir"
)

// Predicate represents a filter condition over a single row.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the evaluator and in backend compilers.
//
// Predicate types:
//   - Always: matches every row
//   - Compare: column <op> literal
//   - In: column matches one of a list of literals
//   - And, Or: binary combinators
//   - Not: negation
//
// A nil Predicate is treated as Always everywhere.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpLt
	OpGte
	OpLte
)

var opSymbols = [...]string{"=", "<>", ">", "<", ">=", "<="}

// String returns the SQL spelling of the operator.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opSymbols) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opSymbols[o]
}

// ParseOp accepts SQL spellings and short names ("eq", "gte", "!=").
func ParseOp(s string) (Op, error) {
	switch s {
	case "=", "==", "eq":
		return OpEq, nil
	case "<>", "!=", "ne":
		return OpNe, nil
	case ">", "gt":
		return OpGt, nil
	case "<", "lt":
		return OpLt, nil
	case ">=", "gte":
		return OpGte, nil
	case "<=", "lte":
		return OpLte, nil
	default:
		return 0, fmt.Errorf("unknown comparison operator %q", s)
	}
}

// Always matches every row.
//
// Translates to SQL:
//
//	1 = 1
type Always struct{}

func (Always) predicateNode() {}

// Compare tests one column against a literal.
//
// Semantics follow SQL: if either side is NULL the comparison is unknown,
// which never matches, including for OpNe.
//
// Example:
//
//	Compare{Column: "age", Op: OpGte, Value: ir.Int(18)}
//
// Translates to SQL:
//
//	"age" >= ?
type Compare struct {
	Column string
	Op     Op
	Value  ir.Value
}

func (Compare) predicateNode() {}

// In tests whether a column equals any value in a list. An empty list
// matches nothing.
//
// Translates to SQL:
//
//	"status" IN (?, ?)
type In struct {
	Column string
	Values []ir.Value
}

func (In) predicateNode() {}

// And matches when both sides match.
type And struct {
	Left, Right Predicate
}

func (And) predicateNode() {}

// Or matches when either side matches.
type Or struct {
	Left, Right Predicate
}

func (Or) predicateNode() {}

// Not negates its operand. Not of an unknown comparison is still unknown.
type Not struct {
	Inner Predicate
}

func (Not) predicateNode() {}

// Columns returns the distinct columns a predicate references, in first-use
// order.
func Columns(p Predicate) []string {
	var cols []string
	walk(p, func(col string) {
		if !slices.Contains(cols, col) {
			cols = append(cols, col)
		}
	})
	return cols
}

func walk(p Predicate, visit func(col string)) {
	switch pred := p.(type) {
	case Compare:
		visit(pred.Column)
	case *Compare:
		visit(pred.Column)
	case In:
		visit(pred.Column)
	case *In:
		visit(pred.Column)
	case And:
		walk(pred.Left, visit)
		walk(pred.Right, visit)
	case *And:
		walk(pred.Left, visit)
		walk(pred.Right, visit)
	case Or:
		walk(pred.Left, visit)
		walk(pred.Right, visit)
	case *Or:
		walk(pred.Left, visit)
		walk(pred.Right, visit)
	case Not:
		walk(pred.Inner, visit)
	case *Not:
		walk(pred.Inner, visit)
	}
}

// FetchKind selects the cardinality contract of a query.
type FetchKind int

const (
	FetchAll FetchKind = iota
	FetchOne
	FetchFirst
	FetchMany
)

var fetchKindNames = [...]string{"all", "one", "first", "many"}

func (k FetchKind) String() string {
	if k < 0 || int(k) >= len(fetchKindNames) {
		return fmt.Sprintf("fetch(%d)", int(k))
	}
	return fetchKindNames[k]
}

// FetchMode is a FetchKind plus the limit for FetchMany.
//
//   - One: exactly one row, else ZeroRows or MultipleRows
//   - First: at least one row, returns the first
//   - All: every matching row
//   - Many(n): at most the first n rows
type FetchMode struct {
	Kind  FetchKind
	Limit int // only for FetchMany
}

// Fetch mode constructors.
func One() FetchMode       { return FetchMode{Kind: FetchOne} }
func First() FetchMode     { return FetchMode{Kind: FetchFirst} }
func All() FetchMode       { return FetchMode{Kind: FetchAll} }
func Many(n int) FetchMode { return FetchMode{Kind: FetchMany, Limit: n} }

// Capacity returns the maximum number of rows the mode can hold, or -1 when
// unbounded.
func (m FetchMode) Capacity() int {
	switch m.Kind {
	case FetchOne, FetchFirst:
		return 1
	case FetchMany:
		return m.Limit
	default:
		return -1
	}
}

func (m FetchMode) String() string {
	if m.Kind == FetchMany {
		return fmt.Sprintf("many(%d)", m.Limit)
	}
	return m.Kind.String()
}

// OrderBy sorts results by one column. Rows that tie on every OrderBy
// column are ordered by primary key ascending.
type OrderBy struct {
	Column string
	Desc   bool
}

// QuerySpec describes a read.
//
// Semantics:
//
//	SELECT <columns> FROM <table> WHERE <filter> ORDER BY <order>, <pk>
//
// Columns must be unique and non-empty. A nil Filter matches every row.
type QuerySpec struct {
	Table   string
	Columns []string
	Filter  Predicate
	Order   []OrderBy
	Mode    FetchMode
}

// Predicate returns the filter, defaulting to Always.
func (q QuerySpec) Predicate() Predicate {
	if q.Filter == nil {
		return Always{}
	}
	return q.Filter
}

// MutationKind identifies the kind of a MutationSpec.
type MutationKind int

const (
	MutationInsert MutationKind = iota
	MutationUpdate
	MutationDelete
)

var mutationKindNames = [...]string{"insert", "update", "delete"}

func (k MutationKind) String() string {
	if k < 0 || int(k) >= len(mutationKindNames) {
		return fmt.Sprintf("mutation(%d)", int(k))
	}
	return mutationKindNames[k]
}

// Assignment sets one column of an updated row.
type Assignment struct {
	Column string
	Expr   Expr
}

// MutationSpec describes a write.
//
//   - Insert: Values holds the full row; every non-nullable column present
//   - Update: Set holds the assignments; Filter selects the rows
//   - Delete: Filter selects the rows
type MutationSpec struct {
	Kind   MutationKind
	Table  string
	Values ir.Row       // Insert only
	Set    []Assignment // Update only
	Filter Predicate    // Update and Delete; nil matches every row
}

// Predicate returns the filter, defaulting to Always.
func (m MutationSpec) Predicate() Predicate {
	if m.Filter == nil {
		return Always{}
	}
	return m.Filter
}

// AssignedColumns returns the columns written by an Update, in order.
func (m MutationSpec) AssignedColumns() []string {
	cols := make([]string, len(m.Set))
	for i, a := range m.Set {
		cols[i] = a.Column
	}
	return cols
}
