package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRow_GetAndWith(t *testing.T) {
	row := NewRow("id", 1, "name", "ada")

	v, ok := row.Get("name")
	assert.True(t, ok)
	assert.Equal(t, Text("ada"), v)

	_, ok = row.Get("age")
	assert.False(t, ok)

	updated := row.With("name", Text("grace")).With("age", Int(36))
	assert.Equal(t, []string{"id", "name", "age"}, updated.Columns())
	assert.Equal(t, NewRow("id", 1, "name", "ada"), row, "receiver must not change")
}

func TestRow_Merge(t *testing.T) {
	cached := NewRow("id", 1, "name", "ada")
	merged := cached.Merge(NewRow("id", 1, "name", "grace", "age", 36))

	assert.Equal(t, NewRow("id", 1, "name", "grace"), merged)
}

func TestRow_Project(t *testing.T) {
	row := NewRow("id", 1, "name", "ada", "age", 36)

	assert.Equal(t, NewRow("age", 36, "id", 1), row.Project([]string{"age", "id"}))
	assert.Equal(t, NewRow("id", 1), row.Project([]string{"id", "missing"}))
}

func TestRow_Equal(t *testing.T) {
	a := NewRow("id", 1, "score", 2.0)
	assert.True(t, a.Equal(NewRow("id", 1, "score", 2)))
	assert.False(t, a.Equal(NewRow("score", 2.0, "id", 1)))
	assert.False(t, a.Equal(NewRow("id", 1)))
}

func TestResultSet_EqualAndProject(t *testing.T) {
	rs := ResultSet{NewRow("id", 1, "name", "a"), NewRow("id", 2, "name", "b")}

	assert.True(t, rs.Equal(ResultSet{NewRow("id", 1, "name", "a"), NewRow("id", 2, "name", "b")}))
	assert.False(t, rs.Equal(rs[:1]))
	assert.Equal(t, ResultSet{NewRow("name", "a"), NewRow("name", "b")}, rs.Project([]string{"name"}))
}

func TestNewRow_Panics(t *testing.T) {
	assert.Panics(t, func() { NewRow("id") })
	assert.Panics(t, func() { NewRow(1, 2) })
}
