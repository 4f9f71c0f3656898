package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/notitia/internal/ir"
)

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError reports that a predicate or expression needs a column
// the candidate row does not carry. It is not the same as a false result:
// the caller has to fetch the full row before the predicate can be decided.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// IsMissingColumn reports whether err is or wraps a MissingColumnError.
func IsMissingColumn(err error) bool {
	return errors.Is(err, ErrMissingColumn)
}

// truth is a SQL three-valued boolean.
type truth int8

const (
	tFalse truth = iota
	tTrue
	tUnknown
)

// Evaluate decides whether row satisfies p.
//
// Evaluation uses SQL three-valued logic internally and collapses unknown
// to false at the root, so Evaluate agrees with what a SQL backend returns
// for the same WHERE clause. A nil predicate matches.
//
// Errors:
//   - MissingColumnError when the outcome depends on an absent column
//   - ir.IncomparableError when a column and literal have unrelated kinds
func Evaluate(p Predicate, row ir.Row) (bool, error) {
	t, err := eval(p, row)
	if err != nil {
		return false, err
	}
	return t == tTrue, nil
}

func eval(p Predicate, row ir.Row) (truth, error) {
	switch pred := p.(type) {
	case nil, Always, *Always:
		return tTrue, nil
	case Compare:
		return evalCompare(pred, row)
	case *Compare:
		return evalCompare(*pred, row)
	case In:
		return evalIn(pred, row)
	case *In:
		return evalIn(*pred, row)
	case And:
		return evalAnd(pred.Left, pred.Right, row)
	case *And:
		return evalAnd(pred.Left, pred.Right, row)
	case Or:
		return evalOr(pred.Left, pred.Right, row)
	case *Or:
		return evalOr(pred.Left, pred.Right, row)
	case Not:
		return evalNot(pred.Inner, row)
	case *Not:
		return evalNot(pred.Inner, row)
	default:
		return tFalse, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func evalCompare(c Compare, row ir.Row) (truth, error) {
	v, ok := row.Get(c.Column)
	if !ok {
		return tFalse, &MissingColumnError{Column: c.Column}
	}
	if ir.IsNull(v) || ir.IsNull(c.Value) {
		return tUnknown, nil
	}
	cmp, err := ir.Compare(v, c.Value)
	if err != nil {
		return tFalse, fmt.Errorf("column %q: %w", c.Column, err)
	}

	var matched bool
	switch c.Op {
	case OpEq:
		matched = cmp == 0
	case OpNe:
		matched = cmp != 0
	case OpGt:
		matched = cmp > 0
	case OpLt:
		matched = cmp < 0
	case OpGte:
		matched = cmp >= 0
	case OpLte:
		matched = cmp <= 0
	default:
		return tFalse, fmt.Errorf("unknown operator %s", c.Op)
	}
	if matched {
		return tTrue, nil
	}
	return tFalse, nil
}

func evalIn(in In, row ir.Row) (truth, error) {
	v, ok := row.Get(in.Column)
	if !ok {
		return tFalse, &MissingColumnError{Column: in.Column}
	}
	if len(in.Values) == 0 {
		return tFalse, nil
	}
	if ir.IsNull(v) {
		return tUnknown, nil
	}

	sawNull := false
	for _, candidate := range in.Values {
		if ir.IsNull(candidate) {
			sawNull = true
			continue
		}
		cmp, err := ir.Compare(v, candidate)
		if err != nil {
			return tFalse, fmt.Errorf("column %q: %w", in.Column, err)
		}
		if cmp == 0 {
			return tTrue, nil
		}
	}
	if sawNull {
		return tUnknown, nil
	}
	return tFalse, nil
}

// evalAnd only reports an error from one side when the other side does not
// already make the conjunction false.
func evalAnd(left, right Predicate, row ir.Row) (truth, error) {
	l, lerr := eval(left, row)
	if lerr == nil && l == tFalse {
		return tFalse, nil
	}
	r, rerr := eval(right, row)
	if rerr == nil && r == tFalse {
		return tFalse, nil
	}
	if lerr != nil {
		return tFalse, lerr
	}
	if rerr != nil {
		return tFalse, rerr
	}
	if l == tTrue && r == tTrue {
		return tTrue, nil
	}
	return tUnknown, nil
}

func evalOr(left, right Predicate, row ir.Row) (truth, error) {
	l, lerr := eval(left, row)
	if lerr == nil && l == tTrue {
		return tTrue, nil
	}
	r, rerr := eval(right, row)
	if rerr == nil && r == tTrue {
		return tTrue, nil
	}
	if lerr != nil {
		return tFalse, lerr
	}
	if rerr != nil {
		return tFalse, rerr
	}
	if l == tFalse && r == tFalse {
		return tFalse, nil
	}
	return tUnknown, nil
}

func evalNot(inner Predicate, row ir.Row) (truth, error) {
	t, err := eval(inner, row)
	if err != nil {
		return tFalse, err
	}
	switch t {
	case tTrue:
		return tFalse, nil
	case tFalse:
		return tTrue, nil
	default:
		return tUnknown, nil
	}
}
