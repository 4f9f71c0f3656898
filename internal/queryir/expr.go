package queryir

import (
	"fmt"

	"github.com/roach88/notitia/internal/ir"
)

// Expr is the right-hand side of an update assignment.
//
// This is a sealed interface - only Literal, Field and Concat implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Literal is a constant value.
type Literal struct {
	Value ir.Value
}

func (Literal) exprNode() {}

// Field reads another column of the row being updated.
type Field struct {
	Column string
}

func (Field) exprNode() {}

// Concat joins two text expressions. NULL on either side yields NULL,
// matching SQL ||.
type Concat struct {
	Left, Right Expr
}

func (Concat) exprNode() {}

// Resolve computes an expression against the pre-update row.
// A Field naming a column the row does not carry fails with
// MissingColumnError.
func Resolve(e Expr, row ir.Row) (ir.Value, error) {
	switch expr := e.(type) {
	case Literal:
		return literalOrNull(expr.Value), nil
	case *Literal:
		return literalOrNull(expr.Value), nil
	case Field:
		return resolveField(expr.Column, row)
	case *Field:
		return resolveField(expr.Column, row)
	case Concat:
		return resolveConcat(expr.Left, expr.Right, row)
	case *Concat:
		return resolveConcat(expr.Left, expr.Right, row)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

func literalOrNull(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}

func resolveField(col string, row ir.Row) (ir.Value, error) {
	v, ok := row.Get(col)
	if !ok {
		return nil, &MissingColumnError{Column: col}
	}
	return v, nil
}

func resolveConcat(left, right Expr, row ir.Row) (ir.Value, error) {
	l, err := Resolve(left, row)
	if err != nil {
		return nil, err
	}
	r, err := Resolve(right, row)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(l) || ir.IsNull(r) {
		return ir.Null{}, nil
	}
	lt, lok := l.(ir.Text)
	rt, rok := r.(ir.Text)
	if !lok || !rok {
		return nil, fmt.Errorf("concat requires text operands, got %s and %s", l.Kind(), r.Kind())
	}
	return ir.NewText(string(lt) + string(rt)), nil
}

// Apply resolves every assignment against row and returns the updated
// row. All expressions see the pre-update values, as in SQL.
func Apply(set []Assignment, row ir.Row) (ir.Row, error) {
	out := row
	for _, a := range set {
		v, err := Resolve(a.Expr, row)
		if err != nil {
			return nil, fmt.Errorf("assign %q: %w", a.Column, err)
		}
		out = out.With(a.Column, v)
	}
	return out, nil
}

// exprColumns returns the columns an expression reads.
func exprColumns(e Expr) []string {
	switch expr := e.(type) {
	case Field:
		return []string{expr.Column}
	case *Field:
		return []string{expr.Column}
	case Concat:
		return append(exprColumns(expr.Left), exprColumns(expr.Right)...)
	case *Concat:
		return append(exprColumns(expr.Left), exprColumns(expr.Right)...)
	default:
		return nil
	}
}
