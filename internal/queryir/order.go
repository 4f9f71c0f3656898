package queryir

import "github.com/roach88/notitia/internal/ir"

// CompareRows orders two rows the way storage orders a query's results:
// by each OrderBy column in turn, then by the primary key ascending. Null
// sorts first in ascending order. A column missing from a row compares as
// Null.
func CompareRows(a, b ir.Row, order []OrderBy, pk string) int {
	for _, o := range order {
		c := ir.SortCompare(valueOrNull(a, o.Column), valueOrNull(b, o.Column))
		if o.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return ir.SortCompare(valueOrNull(a, pk), valueOrNull(b, pk))
}

// OrderColumns returns the columns CompareRows reads for order and pk.
func OrderColumns(order []OrderBy, pk string) []string {
	cols := make([]string, 0, len(order)+1)
	for _, o := range order {
		cols = append(cols, o.Column)
	}
	return append(cols, pk)
}

func valueOrNull(row ir.Row, col string) ir.Value {
	if v, ok := row.Get(col); ok {
		return v
	}
	return ir.Null{}
}
