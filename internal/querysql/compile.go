package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// Dialect selects placeholder syntax and column types.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDialect accepts "sqlite" and "postgres" (or "postgresql").
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unknown SQL dialect %q", s)
	}
}

// Compiler compiles query and mutation specs to parameterized SQL.
//
// CRITICAL: every SELECT ends with an ORDER BY whose last key is the
// primary key, so row order is deterministic for a fixed storage state.
// CRITICAL: all values are parameterized, never interpolated. Identifiers
// are quoted; specs are expected to have passed queryir validation.
type Compiler struct {
	Schema  *ir.Schema
	Dialect Dialect
}

// NewCompiler creates a Compiler for schema.
func NewCompiler(schema *ir.Schema, dialect Dialect) *Compiler {
	return &Compiler{Schema: schema, Dialect: dialect}
}

// CompileQuery compiles a QuerySpec to SELECT. Fetch modes become LIMITs:
// One fetches two rows so the caller can detect MultipleRows.
func (c *Compiler) CompileQuery(q queryir.QuerySpec) (string, []any, error) {
	table, err := c.table(q.Table)
	if err != nil {
		return "", nil, err
	}
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("query on %q selects no columns", q.Table)
	}

	b := c.builder()
	b.WriteString("SELECT ")
	b.columnList(q.Columns)
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(table.Name))
	if err := b.where(q.Filter); err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(OrderClause(table, q.Order))

	switch q.Mode.Kind {
	case queryir.FetchOne:
		b.WriteString(" LIMIT 2")
	case queryir.FetchFirst:
		b.WriteString(" LIMIT 1")
	case queryir.FetchMany:
		b.WriteString(" LIMIT " + strconv.Itoa(q.Mode.Limit))
	}
	return b.String(), b.params, nil
}

// OrderClause renders the ORDER BY keys for order with the primary key
// appended as the final tiebreaker.
func OrderClause(table *ir.TableSchema, order []queryir.OrderBy) string {
	pk := table.PrimaryKey().Name
	keys := make([]string, 0, len(order)+1)
	hasPK := false
	for _, o := range order {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		keys = append(keys, quoteIdent(o.Column)+dir)
		if o.Column == pk {
			hasPK = true
		}
	}
	if !hasPK {
		keys = append(keys, quoteIdent(pk)+" ASC")
	}
	return strings.Join(keys, ", ")
}

// CompilePointLookup compiles a single-key fetch restricted to filter.
func (c *Compiler) CompilePointLookup(tableName string, key ir.Value, cols []string, filter queryir.Predicate) (string, []any, error) {
	table, err := c.table(tableName)
	if err != nil {
		return "", nil, err
	}

	b := c.builder()
	b.WriteString("SELECT ")
	b.columnList(cols)
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(table.Name))
	b.WriteString(" WHERE ")
	b.WriteString(quoteIdent(table.PrimaryKey().Name))
	b.WriteString(" = ")
	b.bind(key)
	if !isAlways(filter) {
		b.WriteString(" AND ")
		if err := b.predicate(filter); err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
	}
	return b.String(), b.params, nil
}

// CompileMutation compiles a MutationSpec. Every statement carries a
// RETURNING clause so the adapter can report affected keys:
//
//   - INSERT returns the stored row
//   - UPDATE returns every column of each updated row
//   - DELETE returns the primary key of each deleted row
func (c *Compiler) CompileMutation(m queryir.MutationSpec) (string, []any, error) {
	table, err := c.table(m.Table)
	if err != nil {
		return "", nil, err
	}
	switch m.Kind {
	case queryir.MutationInsert:
		return c.compileInsert(table, m)
	case queryir.MutationUpdate:
		return c.compileUpdate(table, m)
	case queryir.MutationDelete:
		return c.compileDelete(table, m)
	default:
		return "", nil, fmt.Errorf("unsupported mutation kind: %s", m.Kind)
	}
}

func (c *Compiler) compileInsert(table *ir.TableSchema, m queryir.MutationSpec) (string, []any, error) {
	if len(m.Values) == 0 {
		return "", nil, fmt.Errorf("insert into %q has no values", table.Name)
	}

	b := c.builder()
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(table.Name))
	b.WriteString(" (")
	b.columnList(m.Values.Columns())
	b.WriteString(") VALUES (")
	for i, f := range m.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.bind(f.Value)
	}
	b.WriteString(") RETURNING ")
	b.columnList(table.ColumnNames())
	return b.String(), b.params, nil
}

func (c *Compiler) compileUpdate(table *ir.TableSchema, m queryir.MutationSpec) (string, []any, error) {
	if len(m.Set) == 0 {
		return "", nil, fmt.Errorf("update of %q assigns no columns", table.Name)
	}

	b := c.builder()
	b.WriteString("UPDATE ")
	b.WriteString(quoteIdent(table.Name))
	b.WriteString(" SET ")
	for i, a := range m.Set {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(a.Column))
		b.WriteString(" = ")
		if err := b.expr(a.Expr); err != nil {
			return "", nil, fmt.Errorf("assign %q: %w", a.Column, err)
		}
	}
	if err := b.where(m.Filter); err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	b.WriteString(" RETURNING ")
	b.columnList(table.ColumnNames())
	return b.String(), b.params, nil
}

func (c *Compiler) compileDelete(table *ir.TableSchema, m queryir.MutationSpec) (string, []any, error) {
	b := c.builder()
	b.WriteString("DELETE FROM ")
	b.WriteString(quoteIdent(table.Name))
	if err := b.where(m.Filter); err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	b.WriteString(" RETURNING ")
	b.WriteString(quoteIdent(table.PrimaryKey().Name))
	return b.String(), b.params, nil
}

func (c *Compiler) table(name string) (*ir.TableSchema, error) {
	t, ok := c.Schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func (c *Compiler) builder() *builder {
	return &builder{dialect: c.Dialect}
}

// builder accumulates SQL text and parameters.
type builder struct {
	strings.Builder
	dialect Dialect
	params  []any
}

// bind appends a parameter and writes its placeholder.
func (b *builder) bind(v ir.Value) {
	b.params = append(b.params, ir.Native(v))
	if b.dialect == Postgres {
		b.WriteString("$" + strconv.Itoa(len(b.params)))
		return
	}
	b.WriteString("?")
}

func (b *builder) columnList(cols []string) {
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
	}
}

func (b *builder) where(p queryir.Predicate) error {
	if isAlways(p) {
		return nil
	}
	b.WriteString(" WHERE ")
	return b.predicate(p)
}

func (b *builder) predicate(p queryir.Predicate) error {
	switch pred := p.(type) {
	case nil, queryir.Always, *queryir.Always:
		b.WriteString("1 = 1")
	case queryir.Compare:
		b.compare(pred)
	case *queryir.Compare:
		b.compare(*pred)
	case queryir.In:
		b.in(pred)
	case *queryir.In:
		b.in(*pred)
	case queryir.And:
		return b.binary(pred.Left, "AND", pred.Right)
	case *queryir.And:
		return b.binary(pred.Left, "AND", pred.Right)
	case queryir.Or:
		return b.binary(pred.Left, "OR", pred.Right)
	case *queryir.Or:
		return b.binary(pred.Left, "OR", pred.Right)
	case queryir.Not:
		return b.not(pred.Inner)
	case *queryir.Not:
		return b.not(pred.Inner)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

func (b *builder) compare(c queryir.Compare) {
	b.WriteString(quoteIdent(c.Column))
	b.WriteString(" " + c.Op.String() + " ")
	b.bind(c.Value)
}

func (b *builder) in(in queryir.In) {
	if len(in.Values) == 0 {
		b.WriteString("1 = 0")
		return
	}
	b.WriteString(quoteIdent(in.Column))
	b.WriteString(" IN (")
	for i, v := range in.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.bind(v)
	}
	b.WriteString(")")
}

func (b *builder) binary(left queryir.Predicate, op string, right queryir.Predicate) error {
	b.WriteString("(")
	if err := b.predicate(left); err != nil {
		return err
	}
	b.WriteString(" " + op + " ")
	if err := b.predicate(right); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}

func (b *builder) not(inner queryir.Predicate) error {
	b.WriteString("NOT (")
	if err := b.predicate(inner); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}

func (b *builder) expr(e queryir.Expr) error {
	switch expr := e.(type) {
	case queryir.Literal:
		b.bind(literal(expr.Value))
	case *queryir.Literal:
		b.bind(literal(expr.Value))
	case queryir.Field:
		b.WriteString(quoteIdent(expr.Column))
	case *queryir.Field:
		b.WriteString(quoteIdent(expr.Column))
	case queryir.Concat:
		return b.concat(expr.Left, expr.Right)
	case *queryir.Concat:
		return b.concat(expr.Left, expr.Right)
	default:
		return fmt.Errorf("unsupported expression type: %T", e)
	}
	return nil
}

func (b *builder) concat(left, right queryir.Expr) error {
	b.WriteString("(")
	if err := b.operand(left); err != nil {
		return err
	}
	b.WriteString(" || ")
	if err := b.operand(right); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}

// operand writes a concat operand. PostgreSQL cannot infer the type of a
// bare parameter on both sides of ||, so literals are cast to text there.
func (b *builder) operand(e queryir.Expr) error {
	if err := b.expr(e); err != nil {
		return err
	}
	if b.dialect == Postgres {
		switch e.(type) {
		case queryir.Literal, *queryir.Literal:
			b.WriteString("::text")
		}
	}
	return nil
}

func literal(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}

func isAlways(p queryir.Predicate) bool {
	switch p.(type) {
	case nil, queryir.Always, *queryir.Always:
		return true
	}
	return false
}

// quoteIdent quotes an identifier for both SQLite and PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
