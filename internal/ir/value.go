package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindReal
	KindText
	KindBool
	KindBlob
)

var kindNames = [...]string{"null", "int", "real", "text", "bool", "blob"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a type name as written in schema files to a Kind.
// Accepts the canonical names plus common SQL aliases.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "int", "integer", "bigint":
		return KindInt, nil
	case "real", "float", "double":
		return KindReal, nil
	case "text", "string":
		return KindText, nil
	case "bool", "boolean":
		return KindBool, nil
	case "blob", "bytes":
		return KindBlob, nil
	default:
		return KindNull, fmt.Errorf("unknown column type %q", name)
	}
}

// Value is a sealed interface over the column datatypes.
// Only Null, Int, Real, Text, Bool, and Blob implement it.
type Value interface {
	Kind() Kind
	irValue()
}

// Null is the absent value. Comparisons against Null are unknown.
type Null struct{}

// Int is a 64-bit signed integer.
type Int int64

// Real is a 64-bit float.
type Real float64

// Text is a UTF-8 string. Construct with NewText to get NFC normalization.
type Text string

// Bool is a boolean.
type Bool bool

// Blob is an opaque byte string.
type Blob []byte

func (Null) Kind() Kind { return KindNull }
func (Int) Kind() Kind  { return KindInt }
func (Real) Kind() Kind { return KindReal }
func (Text) Kind() Kind { return KindText }
func (Bool) Kind() Kind { return KindBool }
func (Blob) Kind() Kind { return KindBlob }

func (Null) irValue() {}
func (Int) irValue()  {}
func (Real) irValue() {}
func (Text) irValue() {}
func (Bool) irValue() {}
func (Blob) irValue() {}

// NewText returns s as Text in Unicode normalization form C, so that
// visually identical strings compare equal.
func NewText(s string) Text {
	return Text(norm.NFC.String(s))
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// IncomparableError is returned when two values of unrelated kinds are
// compared, e.g. Text against Int.
type IncomparableError struct {
	Left, Right Kind
}

func (e *IncomparableError) Error() string {
	return fmt.Sprintf("cannot compare %s with %s", e.Left, e.Right)
}

// Compare orders two non-null values. Int and Real compare numerically.
// Passing Null on either side is a programming error and yields an
// IncomparableError; callers handle Null before comparing.
func Compare(a, b Value) (int, error) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return cmpOrdered(x, y), nil
		case Real:
			return cmpFloat(float64(x), float64(y)), nil
		}
	case Real:
		switch y := b.(type) {
		case Int:
			return cmpFloat(float64(x), float64(y)), nil
		case Real:
			return cmpFloat(float64(x), float64(y)), nil
		}
	case Text:
		if y, ok := b.(Text); ok {
			return cmpOrdered(x, y), nil
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !bool(x):
				return -1, nil
			default:
				return 1, nil
			}
		}
	case Blob:
		if y, ok := b.(Blob); ok {
			return bytes.Compare(x, y), nil
		}
	}
	return 0, &IncomparableError{Left: kindOf(a), Right: kindOf(b)}
}

// Equal reports structural equality. Unlike Compare it accepts Null
// (Null equals Null) and never fails; mismatched kinds are unequal,
// except Int and Real holding the same number.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// SortCompare is a total order used for positioning rows. Null sorts
// before every other value and mismatched kinds fall back to kind order.
func SortCompare(a, b Value) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	if c, err := Compare(a, b); err == nil {
		return c
	}
	return cmpOrdered(a.Kind(), b.Kind())
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

func cmpOrdered[T ~int | ~int64 | ~string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return -1
	default:
		return 1
	}
}

// KeyString renders a primary-key value as a map key. Distinct values of
// the same kind always render distinctly.
func KeyString(v Value) string {
	switch val := v.(type) {
	case Int:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case Real:
		return "r:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Text:
		return "t:" + string(val)
	case Bool:
		return "b:" + strconv.FormatBool(bool(val))
	case Blob:
		return "x:" + base64.StdEncoding.EncodeToString(val)
	default:
		return "n:"
	}
}

// ValueOf converts a native Go value into a Value. It understands the
// types produced by database/sql scans, yaml.v3 and encoding/json.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Real(val), nil
	case float64:
		return Real(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Real(f), nil
	case string:
		return NewText(val), nil
	case bool:
		return Bool(val), nil
	case []byte:
		return Blob(bytes.Clone(val)), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// V is ValueOf for literals in code. It panics on unsupported types.
func V(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Native returns the Go representation of v, suitable as a database/sql
// parameter.
func Native(v Value) any {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case Real:
		return float64(val)
	case Text:
		return string(val)
	case Bool:
		return bool(val)
	case Blob:
		return []byte(val)
	default:
		return nil
	}
}

// MarshalValue marshals a Value to JSON. Blobs are base64 strings.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Real:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("cannot marshal non-finite real %v", f)
		}
		return json.Marshal(f)
	case Text:
		return marshalCanonicalString(string(val))
	case Bool:
		return []byte(strconv.FormatBool(bool(val))), nil
	case Blob:
		return json.Marshal(base64.StdEncoding.EncodeToString(val))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func (v Text) String() string { return string(v) }

func (Null) String() string { return "NULL" }
