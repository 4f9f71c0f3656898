package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

func TestResultCache_OrderedInsert(t *testing.T) {
	order := []queryir.OrderBy{{Column: "age"}}
	c := newResultCache(ir.ResultSet{
		ir.NewRow("id", 1, "age", 10),
		ir.NewRow("id", 2, "age", 30),
	}, order, "id")

	c.insert(ir.NewRow("id", 3, "age", 20))
	c.insert(ir.NewRow("id", 4, "age", nil))
	c.insert(ir.NewRow("id", 0, "age", 30))
	assert.Equal(t, []int64{4, 1, 3, 0, 2}, ids(c.project([]string{"id"})))
	assert.Equal(t, 5, c.len())

	row, ok := c.get(ir.Int(3))
	require.True(t, ok)
	assert.Equal(t, ir.NewRow("id", 3, "age", 20), row)
}

func TestResultCache_ReplaceRepositions(t *testing.T) {
	c := newResultCache(ir.ResultSet{
		ir.NewRow("id", 3, "age", 30),
		ir.NewRow("id", 2, "age", 20),
		ir.NewRow("id", 1, "age", 10),
	}, []queryir.OrderBy{{Column: "age", Desc: true}}, "id")

	c.replace(ir.NewRow("id", 1, "age", 40))
	assert.Equal(t, []int64{1, 3, 2}, ids(c.project([]string{"id"})))

	assert.True(t, c.remove(ir.Int(3)))
	assert.False(t, c.remove(ir.Int(3)))
	_, ok := c.get(ir.Int(3))
	assert.False(t, ok)
	assert.Equal(t, []int64{1, 2}, ids(c.project([]string{"id"})))
}

func TestResultCache_RemoveFromUnsortedSeed(t *testing.T) {
	// Seeds keep storage order even when it disagrees with CompareRows.
	c := newResultCache(ir.ResultSet{
		ir.NewRow("id", 1, "name", "b"),
		ir.NewRow("id", 2, "name", "B"),
		ir.NewRow("id", 3, "name", "a"),
	}, []queryir.OrderBy{{Column: "name"}}, "id")

	assert.True(t, c.remove(ir.Int(2)))
	assert.Equal(t, []int64{1, 3}, ids(c.project([]string{"id"})))
}

func TestResultCache_EachAllowsMutation(t *testing.T) {
	c := newResultCache(ir.ResultSet{
		ir.NewRow("id", 1),
		ir.NewRow("id", 2),
		ir.NewRow("id", 3),
	}, nil, "id")

	c.each(func(row ir.Row) {
		key, _ := row.Get("id")
		c.remove(key)
	})
	assert.Zero(t, c.len())
}
