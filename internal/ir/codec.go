package ir

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// ConversionErrorKind classifies a failed conversion between a Value and an
// application type.
type ConversionErrorKind string

const (
	TypeMismatch        ConversionErrorKind = "type_mismatch"
	UnexpectedNull      ConversionErrorKind = "unexpected_null"
	WrongNumberOfValues ConversionErrorKind = "wrong_number_of_values"
)

// ConversionError is returned by Codec.Decode and DecodeRow.
type ConversionError struct {
	Kind     ConversionErrorKind
	Column   string // set by DecodeRow
	Expected string
	Got      string
}

func (e *ConversionError) Error() string {
	prefix := ""
	if e.Column != "" {
		prefix = fmt.Sprintf("column %q: ", e.Column)
	}
	switch e.Kind {
	case UnexpectedNull:
		return fmt.Sprintf("%sunexpected null, expected %s", prefix, e.Expected)
	case WrongNumberOfValues:
		return fmt.Sprintf("%sexpected %s values, got %s", prefix, e.Expected, e.Got)
	default:
		return fmt.Sprintf("%stype mismatch: expected %s, got %s", prefix, e.Expected, e.Got)
	}
}

func mismatch(expected Kind, got Value) error {
	if IsNull(got) {
		return &ConversionError{Kind: UnexpectedNull, Expected: expected.String()}
	}
	return &ConversionError{Kind: TypeMismatch, Expected: expected.String(), Got: got.Kind().String()}
}

// Codec converts between an application type and a Value.
type Codec[T any] interface {
	Encode(T) Value
	Decode(Value) (T, error)
}

// CodecFunc adapts a pair of functions to Codec.
type CodecFunc[T any] struct {
	EncodeFunc func(T) Value
	DecodeFunc func(Value) (T, error)
}

func (c CodecFunc[T]) Encode(v T) Value          { return c.EncodeFunc(v) }
func (c CodecFunc[T]) Decode(v Value) (T, error) { return c.DecodeFunc(v) }

// Int64Codec maps int64 to Int.
var Int64Codec Codec[int64] = CodecFunc[int64]{
	EncodeFunc: func(v int64) Value { return Int(v) },
	DecodeFunc: func(v Value) (int64, error) {
		if i, ok := v.(Int); ok {
			return int64(i), nil
		}
		return 0, mismatch(KindInt, v)
	},
}

// Float64Codec maps float64 to Real. Int values are widened.
var Float64Codec Codec[float64] = CodecFunc[float64]{
	EncodeFunc: func(v float64) Value { return Real(v) },
	DecodeFunc: func(v Value) (float64, error) {
		switch x := v.(type) {
		case Real:
			return float64(x), nil
		case Int:
			return float64(x), nil
		}
		return 0, mismatch(KindReal, v)
	},
}

// StringCodec maps string to Text.
var StringCodec Codec[string] = CodecFunc[string]{
	EncodeFunc: func(v string) Value { return NewText(v) },
	DecodeFunc: func(v Value) (string, error) {
		if s, ok := v.(Text); ok {
			return string(s), nil
		}
		return "", mismatch(KindText, v)
	},
}

// BoolCodec maps bool to Bool.
var BoolCodec Codec[bool] = CodecFunc[bool]{
	EncodeFunc: func(v bool) Value { return Bool(v) },
	DecodeFunc: func(v Value) (bool, error) {
		if b, ok := v.(Bool); ok {
			return bool(b), nil
		}
		return false, mismatch(KindBool, v)
	},
}

// BytesCodec maps []byte to Blob.
var BytesCodec Codec[[]byte] = CodecFunc[[]byte]{
	EncodeFunc: func(v []byte) Value { return Blob(v) },
	DecodeFunc: func(v Value) ([]byte, error) {
		if b, ok := v.(Blob); ok {
			return []byte(b), nil
		}
		return nil, mismatch(KindBlob, v)
	},
}

// TimeCodec stores time.Time as RFC 3339 text in UTC.
var TimeCodec Codec[time.Time] = CodecFunc[time.Time]{
	EncodeFunc: func(v time.Time) Value { return Text(v.UTC().Format(time.RFC3339Nano)) },
	DecodeFunc: func(v Value) (time.Time, error) {
		s, ok := v.(Text)
		if !ok {
			return time.Time{}, mismatch(KindText, v)
		}
		t, err := time.Parse(time.RFC3339Nano, string(s))
		if err != nil {
			return time.Time{}, &ConversionError{Kind: TypeMismatch, Expected: "RFC 3339 timestamp", Got: string(s)}
		}
		return t, nil
	},
}

// Optional wraps a codec so that nil pointers encode as Null and Null
// decodes to nil.
func Optional[T any](c Codec[T]) Codec[*T] {
	return CodecFunc[*T]{
		EncodeFunc: func(v *T) Value {
			if v == nil {
				return Null{}
			}
			return c.Encode(*v)
		},
		DecodeFunc: func(v Value) (*T, error) {
			if IsNull(v) {
				return nil, nil
			}
			out, err := c.Decode(v)
			if err != nil {
				return nil, err
			}
			return &out, nil
		},
	}
}

// CodecRegistry holds codecs for application types so that values of those
// types can be used directly in predicates and rows.
type CodecRegistry struct {
	mu     sync.RWMutex
	codecs map[reflect.Type]func(any) Value
}

// NewCodecRegistry returns a registry preloaded with time.Time.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[reflect.Type]func(any) Value)}
	Register(r, TimeCodec)
	return r
}

// Register adds c as the codec for T, replacing any previous one.
func Register[T any](r *CodecRegistry, c Codec[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[reflect.TypeFor[T]()] = func(v any) Value { return c.Encode(v.(T)) }
}

// Encode converts v with its registered codec, falling back to ValueOf for
// native types.
func (r *CodecRegistry) Encode(v any) (Value, error) {
	if v != nil {
		r.mu.RLock()
		enc, ok := r.codecs[reflect.TypeOf(v)]
		r.mu.RUnlock()
		if ok {
			return enc(v), nil
		}
	}
	return ValueOf(v)
}

// DecodeRow runs one decoder per listed column of row, in order. Typed
// readers built on top of a ResultSet use it with Into.
func DecodeRow(row Row, cols []string, decoders ...func(Value) error) error {
	if len(cols) != len(decoders) {
		return &ConversionError{
			Kind:     WrongNumberOfValues,
			Expected: fmt.Sprint(len(cols)),
			Got:      fmt.Sprint(len(decoders)),
		}
	}
	for i, col := range cols {
		v, ok := row.Get(col)
		if !ok {
			return &ConversionError{Kind: WrongNumberOfValues, Column: col, Expected: fmt.Sprint(len(cols)), Got: fmt.Sprint(len(row))}
		}
		if err := decoders[i](v); err != nil {
			if ce, ok := err.(*ConversionError); ok && ce.Column == "" {
				ce.Column = col
			}
			return err
		}
	}
	return nil
}

// Into returns a DecodeRow decoder that stores the decoded value in dst.
func Into[T any](c Codec[T], dst *T) func(Value) error {
	return func(v Value) error {
		out, err := c.Decode(v)
		if err != nil {
			return err
		}
		*dst = out
		return nil
	}
}
