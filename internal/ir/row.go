package ir

// Field is one column of a Row.
type Field struct {
	Column string
	Value  Value
}

// Row is an ordered mapping from column name to value.
//
// Rows are treated as immutable once published; With and Project return
// new rows and never modify the receiver.
type Row []Field

// ResultSet is an ordered sequence of rows.
type ResultSet []Row

// NewRow builds a Row from alternating column names and values.
// Values are converted with V, so this is intended for literals in code.
//
//	NewRow("id", 1, "name", "ada")
func NewRow(pairs ...any) Row {
	if len(pairs)%2 != 0 {
		panic("ir.NewRow: odd number of arguments")
	}
	row := make(Row, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		col, ok := pairs[i].(string)
		if !ok {
			panic("ir.NewRow: column name must be a string")
		}
		row = append(row, Field{Column: col, Value: V(pairs[i+1])})
	}
	return row
}

// Get returns the value for col and whether the column is present.
func (r Row) Get(col string) (Value, bool) {
	for _, f := range r {
		if f.Column == col {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether col is present.
func (r Row) Has(col string) bool {
	_, ok := r.Get(col)
	return ok
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Column
	}
	return cols
}

// With returns a copy of r where col is set to v. A new column is appended.
func (r Row) With(col string, v Value) Row {
	out := r.Clone()
	for i := range out {
		if out[i].Column == col {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Column: col, Value: v})
}

// Merge returns a copy of r with every column of other that r already has
// overwritten by other's value. Columns only in other are ignored.
func (r Row) Merge(other Row) Row {
	out := r.Clone()
	for i := range out {
		if v, ok := other.Get(out[i].Column); ok {
			out[i].Value = v
		}
	}
	return out
}

// Project returns the listed columns in the listed order. Columns missing
// from r are skipped.
func (r Row) Project(cols []string) Row {
	out := make(Row, 0, len(cols))
	for _, c := range cols {
		if v, ok := r.Get(c); ok {
			out = append(out, Field{Column: c, Value: v})
		}
	}
	return out
}

// Clone returns a shallow copy. Values are immutable so this is a full copy
// for every kind except Blob, whose bytes are shared.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Equal reports whether both rows hold the same columns in the same order
// with equal values.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i].Column != other[i].Column || !Equal(r[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}

// Equal reports whether both result sets hold equal rows in the same order.
func (rs ResultSet) Equal(other ResultSet) bool {
	if len(rs) != len(other) {
		return false
	}
	for i := range rs {
		if !rs[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Project projects every row.
func (rs ResultSet) Project(cols []string) ResultSet {
	out := make(ResultSet, len(rs))
	for i, row := range rs {
		out[i] = row.Project(cols)
	}
	return out
}

// MarshalJSON writes the row as an object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r)
}
