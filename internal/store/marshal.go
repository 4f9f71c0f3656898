package store

import (
	"fmt"

	"github.com/roach88/notitia/internal/ir"
)

// RowScanner is the iteration surface shared by *sql.Rows and pgx.Rows.
type RowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanRows reads every remaining row, decoding each value by its declared
// column kind.
//
// Returns an empty ResultSet (not nil) if there are no rows.
func ScanRows(rows RowScanner, cols []ir.Column) (ir.ResultSet, error) {
	out := ir.ResultSet{}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		for i := range raw {
			raw[i] = nil
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(ir.Row, len(cols))
		for i, col := range cols {
			v, err := DecodeValue(col, raw[i])
			if err != nil {
				return nil, err
			}
			row[i] = ir.Field{Column: col.Name, Value: v}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// DecodeValue converts a raw driver value to the Value kind declared for
// col. SQLite reports booleans as integers and may hand back text as
// bytes; both are normalized here.
func DecodeValue(col ir.Column, raw any) (ir.Value, error) {
	if raw == nil {
		return ir.Null{}, nil
	}

	switch col.Kind {
	case ir.KindBool:
		switch v := raw.(type) {
		case bool:
			return ir.Bool(v), nil
		case int64:
			return ir.Bool(v != 0), nil
		}
	case ir.KindInt:
		switch v := raw.(type) {
		case int64:
			return ir.Int(v), nil
		case int32:
			return ir.Int(v), nil
		case int16:
			return ir.Int(v), nil
		}
	case ir.KindReal:
		switch v := raw.(type) {
		case float64:
			return ir.Real(v), nil
		case float32:
			return ir.Real(v), nil
		case int64:
			return ir.Real(v), nil
		}
	case ir.KindText:
		switch v := raw.(type) {
		case string:
			return ir.NewText(v), nil
		case []byte:
			return ir.NewText(string(v)), nil
		}
	case ir.KindBlob:
		switch v := raw.(type) {
		case []byte:
			return ir.Blob(append([]byte{}, v...)), nil
		case string:
			return ir.Blob(v), nil
		}
	}

	return nil, &ir.ConversionError{
		Kind:     ir.TypeMismatch,
		Column:   col.Name,
		Expected: col.Kind.String(),
		Got:      fmt.Sprintf("%T", raw),
	}
}
