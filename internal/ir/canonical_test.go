package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"zebra":  1,
		"apple":  true,
		"banana": "b",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"apple":true,"banana":"b","zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 (private use) sorts after U+1F600 (emoji, surrogate pair
	// D83D DE00) in UTF-16 but before it in UTF-8.
	keys := SortedKeys(map[string]int{
		"\uE000":     1,
		"\U0001F600": 2,
	})
	assert.Equal(t, []string{"\U0001F600", "\uE000"}, keys)
}

func TestMarshalCanonicalRowKeepsColumnOrder(t *testing.T) {
	row := NewRow("name", "ada", "id", 1)
	result, err := MarshalCanonical(row)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"ada","id":1}`, string(result))
}

func TestMarshalCanonicalResultSet(t *testing.T) {
	rs := ResultSet{
		NewRow("id", 1, "score", 1.5),
		NewRow("id", 2, "score", nil),
	}
	result, err := MarshalCanonical(rs)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"score":1.5},{"id":2,"score":null}]`, string(result))
}

func TestMarshalCanonicalNested(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"rows":  ResultSet{NewRow("id", 1)},
		"names": []string{"b", "a"},
		"extra": []any{int64(1), nil},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"extra":[1,null],"names":["b","a"],"rows":[{"id":1}]}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<script>alert('x') & more</script>")
	require.NoError(t, err)
	assert.Equal(t, `"<script>alert('x') & more</script>"`, string(result))
	assert.NotContains(t, string(result), "\\u003c")
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	r1, err := MarshalCanonical(composed)
	require.NoError(t, err)
	r2, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	o1, err := MarshalCanonical(map[string]any{composed: 1})
	require.NoError(t, err)
	o2, err := MarshalCanonical(map[string]any{decomposed: 1})
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
}

func TestMarshalCanonicalLineSeparatorsNotEscaped(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"U+2028", "hello\u2028world", "\"hello\u2028world\""},
		{"U+2029", "hello\u2029world", "\"hello\u2029world\""},
		{"both", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"literal backslash text", `a\u2028`, `"a\\u2028"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := MarshalCanonical(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)

	_, err = MarshalCanonical(Real(math.Inf(1)))
	assert.Error(t, err)
}
