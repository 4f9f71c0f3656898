package ir

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCodecs(t *testing.T) {
	n, err := Int64Codec.Decode(Int64Codec.Encode(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	f, err := Float64Codec.Decode(Int(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	s, err := StringCodec.Decode(StringCodec.Encode("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", s)

	b, err := BoolCodec.Decode(Bool(true))
	require.NoError(t, err)
	assert.True(t, b)

	raw, err := BytesCodec.Decode(Blob{9})
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, raw)
}

func TestCodec_ConversionErrors(t *testing.T) {
	_, err := Int64Codec.Decode(Text("x"))
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, TypeMismatch, ce.Kind)
	assert.Equal(t, "int", ce.Expected)
	assert.Equal(t, "text", ce.Got)

	_, err = StringCodec.Decode(Null{})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, UnexpectedNull, ce.Kind)
}

func TestTimeCodec(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	v := TimeCodec.Encode(ts)
	assert.Equal(t, Text("2024-03-01T12:30:00Z"), v)

	got, err := TimeCodec.Decode(v)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	_, err = TimeCodec.Decode(Text("yesterday"))
	assert.Error(t, err)
}

func TestOptionalCodec(t *testing.T) {
	c := Optional(Int64Codec)

	assert.Equal(t, Null{}, c.Encode(nil))

	got, err := c.Decode(Null{})
	require.NoError(t, err)
	assert.Nil(t, got)

	n := int64(7)
	got, err = c.Decode(c.Encode(&n))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), *got)
}

type userID string

func TestCodecRegistry(t *testing.T) {
	r := NewCodecRegistry()
	Register[userID](r, CodecFunc[userID]{
		EncodeFunc: func(v userID) Value { return Text("user:" + string(v)) },
		DecodeFunc: func(v Value) (userID, error) {
			s, err := StringCodec.Decode(v)
			return userID(strings.TrimPrefix(s, "user:")), err
		},
	})

	v, err := r.Encode(userID("u1"))
	require.NoError(t, err)
	assert.Equal(t, Text("user:u1"), v)

	v, err = r.Encode(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Text("2024-01-01T00:00:00Z"), v)

	v, err = r.Encode(12)
	require.NoError(t, err)
	assert.Equal(t, Int(12), v)
}

func TestDecodeRow(t *testing.T) {
	row := NewRow("id", 1, "name", "ada", "age", nil)

	var (
		id   int64
		name string
		age  *int64
	)
	err := DecodeRow(row, []string{"id", "name", "age"},
		Into(Int64Codec, &id),
		Into(StringCodec, &name),
		Into(Optional(Int64Codec), &age),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "ada", name)
	assert.Nil(t, age)
}

func TestDecodeRow_Errors(t *testing.T) {
	row := NewRow("id", 1, "name", nil)
	var id int64
	var name string

	err := DecodeRow(row, []string{"id", "name"}, Into(Int64Codec, &id))
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, WrongNumberOfValues, ce.Kind)

	err = DecodeRow(row, []string{"id", "name"}, Into(Int64Codec, &id), Into(StringCodec, &name))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, UnexpectedNull, ce.Kind)
	assert.Equal(t, "name", ce.Column)

	err = DecodeRow(row, []string{"missing"}, Into(Int64Codec, &id))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "missing", ce.Column)
}
