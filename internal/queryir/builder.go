package queryir

import (
	"slices"

	"github.com/roach88/notitia/internal/ir"
)

// Predicate helpers. Literal arguments are converted with ir.V, so they
// accept native Go values as well as ir.Value.

func Eq(col string, v any) Predicate  { return Compare{Column: col, Op: OpEq, Value: ir.V(v)} }
func Ne(col string, v any) Predicate  { return Compare{Column: col, Op: OpNe, Value: ir.V(v)} }
func Gt(col string, v any) Predicate  { return Compare{Column: col, Op: OpGt, Value: ir.V(v)} }
func Lt(col string, v any) Predicate  { return Compare{Column: col, Op: OpLt, Value: ir.V(v)} }
func Gte(col string, v any) Predicate { return Compare{Column: col, Op: OpGte, Value: ir.V(v)} }
func Lte(col string, v any) Predicate { return Compare{Column: col, Op: OpLte, Value: ir.V(v)} }

// OneOf builds an In predicate.
func OneOf(col string, vals ...any) Predicate {
	values := make([]ir.Value, len(vals))
	for i, v := range vals {
		values[i] = ir.V(v)
	}
	return In{Column: col, Values: values}
}

// AllOf folds predicates into a left-deep And chain. No arguments yields
// Always.
func AllOf(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		return Always{}
	}
	p := preds[0]
	for _, next := range preds[1:] {
		p = And{Left: p, Right: next}
	}
	return p
}

// AnyOf folds predicates into a left-deep Or chain. No arguments yields a
// predicate that matches nothing.
func AnyOf(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		return Not{Inner: Always{}}
	}
	p := preds[0]
	for _, next := range preds[1:] {
		p = Or{Left: p, Right: next}
	}
	return p
}

// Expression helpers for update assignments.

func Lit(v any) Expr            { return Literal{Value: ir.V(v)} }
func Col(name string) Expr      { return Field{Column: name} }
func Cat(left, right Expr) Expr { return Concat{Left: left, Right: right} }

// QueryBuilder assembles a QuerySpec.
//
//	q := queryir.Select("users", "id", "name").
//		Where(queryir.Gte("age", 18)).
//		OrderBy("name").
//		All()
type QueryBuilder struct {
	spec QuerySpec
}

// Select starts a query on table projecting cols.
func Select(table string, cols ...string) *QueryBuilder {
	return &QueryBuilder{spec: QuerySpec{Table: table, Columns: slices.Clone(cols)}}
}

// Where sets the filter. Calling Where again ANDs the new predicate.
func (b *QueryBuilder) Where(p Predicate) *QueryBuilder {
	if b.spec.Filter == nil {
		b.spec.Filter = p
	} else {
		b.spec.Filter = And{Left: b.spec.Filter, Right: p}
	}
	return b
}

// OrderBy appends an ascending sort column.
func (b *QueryBuilder) OrderBy(col string) *QueryBuilder {
	b.spec.Order = append(b.spec.Order, OrderBy{Column: col})
	return b
}

// OrderByDesc appends a descending sort column.
func (b *QueryBuilder) OrderByDesc(col string) *QueryBuilder {
	b.spec.Order = append(b.spec.Order, OrderBy{Column: col, Desc: true})
	return b
}

func (b *QueryBuilder) One() QuerySpec       { return b.build(One()) }
func (b *QueryBuilder) First() QuerySpec     { return b.build(First()) }
func (b *QueryBuilder) All() QuerySpec       { return b.build(All()) }
func (b *QueryBuilder) Many(n int) QuerySpec { return b.build(Many(n)) }

func (b *QueryBuilder) build(mode FetchMode) QuerySpec {
	spec := b.spec
	spec.Columns = slices.Clone(spec.Columns)
	spec.Order = slices.Clone(spec.Order)
	spec.Mode = mode
	return spec
}

// Insert builds an insert of row into table.
func Insert(table string, row ir.Row) MutationSpec {
	return MutationSpec{Kind: MutationInsert, Table: table, Values: row.Clone()}
}

// Delete builds a delete of the rows of table matching where.
func Delete(table string, where Predicate) MutationSpec {
	return MutationSpec{Kind: MutationDelete, Table: table, Filter: where}
}

// UpdateBuilder assembles an update MutationSpec.
//
//	m := queryir.Update("users").
//		Set("age", 18).
//		Where(queryir.Eq("id", 1)).
//		Build()
type UpdateBuilder struct {
	spec MutationSpec
}

// Update starts an update on table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{spec: MutationSpec{Kind: MutationUpdate, Table: table}}
}

// Set assigns a literal value to col.
func (b *UpdateBuilder) Set(col string, v any) *UpdateBuilder {
	return b.SetExpr(col, Lit(v))
}

// SetExpr assigns an expression to col.
func (b *UpdateBuilder) SetExpr(col string, e Expr) *UpdateBuilder {
	b.spec.Set = append(b.spec.Set, Assignment{Column: col, Expr: e})
	return b
}

// Where sets the filter. Calling Where again ANDs the new predicate.
func (b *UpdateBuilder) Where(p Predicate) *UpdateBuilder {
	if b.spec.Filter == nil {
		b.spec.Filter = p
	} else {
		b.spec.Filter = And{Left: b.spec.Filter, Right: p}
	}
	return b
}

// Build returns the MutationSpec.
func (b *UpdateBuilder) Build() MutationSpec {
	spec := b.spec
	spec.Set = slices.Clone(spec.Set)
	return spec
}
