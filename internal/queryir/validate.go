package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/notitia/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUnknownTable      = "E201" // table not in schema
	ErrUnknownColumn     = "E202" // column not in table
	ErrDuplicateColumn   = "E203" // column listed twice
	ErrEmptyProjection   = "E204" // query selects no columns
	ErrKindMismatch      = "E205" // literal kind does not match column kind
	ErrMissingRequired   = "E206" // insert omits a non-nullable column
	ErrPrimaryKeyUpdate  = "E207" // update assigns the primary key
	ErrInvalidFetchLimit = "E208" // many(n) with n < 1
	ErrConcatNonText     = "E209" // concat assigned to a non-text column
	ErrNullNotAllowed    = "E210" // null written to a non-nullable column
	ErrInvalidPredicate  = "E211" // unknown operator or predicate node
)

// ValidationError describes one problem with a spec.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a non-empty list of validation failures.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns errs as an error, or nil when empty.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateQuery checks q against the schema.
// Returns all errors found (does not fail-fast).
func ValidateQuery(q QuerySpec, schema *ir.Schema) ValidationErrors {
	v := &validator{}
	table, ok := schema.Table(q.Table)
	if !ok {
		v.add("table", ErrUnknownTable, "unknown table %q", q.Table)
		return v.errs
	}
	v.table = table

	if len(q.Columns) == 0 {
		v.add("columns", ErrEmptyProjection, "at least one column is required")
	}
	seen := make(map[string]bool, len(q.Columns))
	for _, col := range q.Columns {
		if seen[col] {
			v.add("columns", ErrDuplicateColumn, "column %q listed twice", col)
			continue
		}
		seen[col] = true
		v.column("columns", col)
	}
	for _, o := range q.Order {
		v.column("order", o.Column)
	}
	if q.Mode.Kind == FetchMany && q.Mode.Limit < 1 {
		v.add("mode", ErrInvalidFetchLimit, "many(n) requires n >= 1, got %d", q.Mode.Limit)
	}
	v.predicate("filter", q.Filter)
	return v.errs
}

// ValidateMutation checks m against the schema.
// Returns all errors found (does not fail-fast).
func ValidateMutation(m MutationSpec, schema *ir.Schema) ValidationErrors {
	v := &validator{}
	table, ok := schema.Table(m.Table)
	if !ok {
		v.add("table", ErrUnknownTable, "unknown table %q", m.Table)
		return v.errs
	}
	v.table = table

	switch m.Kind {
	case MutationInsert:
		v.insert(m.Values)
	case MutationUpdate:
		v.update(m.Set)
		v.predicate("filter", m.Filter)
	case MutationDelete:
		v.predicate("filter", m.Filter)
	default:
		v.add("kind", ErrInvalidPredicate, "unknown mutation kind %s", m.Kind)
	}
	return v.errs
}

// validator accumulates errors during traversal.
type validator struct {
	table *ir.TableSchema
	errs  ValidationErrors
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) column(field, name string) (ir.Column, bool) {
	col, ok := v.table.Column(name)
	if !ok {
		v.add(field, ErrUnknownColumn, "unknown column %q in table %q", name, v.table.Name)
	}
	return col, ok
}

// literal checks that a non-null value can be stored in col.
func (v *validator) literal(field string, col ir.Column, val ir.Value) {
	if ir.IsNull(val) {
		return
	}
	if !kindAssignable(col.Kind, val.Kind()) {
		v.add(field, ErrKindMismatch, "column %q is %s, got %s", col.Name, col.Kind, val.Kind())
	}
}

func kindAssignable(column, value ir.Kind) bool {
	return column == value || (column == ir.KindReal && value == ir.KindInt)
}

func (v *validator) predicate(field string, p Predicate) {
	switch pred := p.(type) {
	case nil, Always, *Always:
	case Compare:
		v.compare(field, pred)
	case *Compare:
		v.compare(field, *pred)
	case In:
		v.in(field, pred)
	case *In:
		v.in(field, *pred)
	case And:
		v.predicate(field, pred.Left)
		v.predicate(field, pred.Right)
	case *And:
		v.predicate(field, pred.Left)
		v.predicate(field, pred.Right)
	case Or:
		v.predicate(field, pred.Left)
		v.predicate(field, pred.Right)
	case *Or:
		v.predicate(field, pred.Left)
		v.predicate(field, pred.Right)
	case Not:
		v.predicate(field, pred.Inner)
	case *Not:
		v.predicate(field, pred.Inner)
	default:
		v.add(field, ErrInvalidPredicate, "unsupported predicate type %T", p)
	}
}

func (v *validator) compare(field string, c Compare) {
	if c.Op < OpEq || c.Op > OpLte {
		v.add(field, ErrInvalidPredicate, "unknown operator %d", int(c.Op))
	}
	if col, ok := v.column(field, c.Column); ok {
		v.literal(field, col, c.Value)
	}
}

func (v *validator) in(field string, in In) {
	col, ok := v.column(field, in.Column)
	if !ok {
		return
	}
	for _, val := range in.Values {
		v.literal(field, col, val)
	}
}

func (v *validator) insert(row ir.Row) {
	seen := make(map[string]bool, len(row))
	for _, f := range row {
		if seen[f.Column] {
			v.add("values", ErrDuplicateColumn, "column %q listed twice", f.Column)
			continue
		}
		seen[f.Column] = true
		col, ok := v.column("values", f.Column)
		if !ok {
			continue
		}
		if ir.IsNull(f.Value) && !col.Nullable {
			v.add("values", ErrNullNotAllowed, "column %q is not nullable", col.Name)
			continue
		}
		v.literal("values", col, f.Value)
	}
	for _, col := range v.table.Columns {
		if !col.Nullable && !seen[col.Name] {
			v.add("values", ErrMissingRequired, "column %q is required", col.Name)
		}
	}
}

func (v *validator) update(set []Assignment) {
	var assigned []string
	for _, a := range set {
		if slices.Contains(assigned, a.Column) {
			v.add("set", ErrDuplicateColumn, "column %q assigned twice", a.Column)
			continue
		}
		assigned = append(assigned, a.Column)

		col, ok := v.column("set", a.Column)
		if !ok {
			continue
		}
		if col.PrimaryKey {
			v.add("set", ErrPrimaryKeyUpdate, "primary key %q cannot be assigned", col.Name)
			continue
		}
		v.expr(col, a.Expr)
	}
}

func (v *validator) expr(col ir.Column, e Expr) {
	switch expr := e.(type) {
	case Literal:
		v.assignLiteral(col, expr.Value)
	case *Literal:
		v.assignLiteral(col, expr.Value)
	case Field:
		v.fieldRef(col, expr.Column)
	case *Field:
		v.fieldRef(col, expr.Column)
	case Concat, *Concat:
		if col.Kind != ir.KindText {
			v.add("set", ErrConcatNonText, "concat assigned to %s column %q", col.Kind, col.Name)
		}
		v.concatOperands(e)
	default:
		v.add("set", ErrInvalidPredicate, "unsupported expression type %T", e)
	}
}

func (v *validator) fieldRef(col ir.Column, ref string) {
	src, ok := v.column("set", ref)
	if ok && !kindAssignable(col.Kind, src.Kind) {
		v.add("set", ErrKindMismatch, "column %q is %s, field %q is %s", col.Name, col.Kind, ref, src.Kind)
	}
}

// concatOperands requires every leaf of a concat to be text.
func (v *validator) concatOperands(e Expr) {
	switch expr := e.(type) {
	case Concat:
		v.concatOperands(expr.Left)
		v.concatOperands(expr.Right)
	case *Concat:
		v.concatOperands(expr.Left)
		v.concatOperands(expr.Right)
	case Literal:
		v.concatLiteral(expr.Value)
	case *Literal:
		v.concatLiteral(expr.Value)
	case Field:
		v.concatField(expr.Column)
	case *Field:
		v.concatField(expr.Column)
	}
}

func (v *validator) concatLiteral(val ir.Value) {
	if !ir.IsNull(val) && val.Kind() != ir.KindText {
		v.add("set", ErrConcatNonText, "concat operand is %s, want text", val.Kind())
	}
}

func (v *validator) concatField(name string) {
	if src, ok := v.column("set", name); ok && src.Kind != ir.KindText {
		v.add("set", ErrConcatNonText, "concat operand %q is %s, want text", name, src.Kind)
	}
}

func (v *validator) assignLiteral(col ir.Column, val ir.Value) {
	if ir.IsNull(val) && !col.Nullable {
		v.add("set", ErrNullNotAllowed, "column %q is not nullable", col.Name)
		return
	}
	v.literal("set", col, val)
}
