package queryir

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/notitia/internal/ir"
)

func TestCompareRows(t *testing.T) {
	rows := []ir.Row{
		ir.NewRow("id", 3, "age", 20),
		ir.NewRow("id", 1, "age", 30),
		ir.NewRow("id", 4, "age", nil),
		ir.NewRow("id", 2, "age", 20),
	}

	ids := func(rs []ir.Row) []ir.Value {
		out := make([]ir.Value, len(rs))
		for i, r := range rs {
			out[i], _ = r.Get("id")
		}
		return out
	}

	byPK := slices.Clone(rows)
	slices.SortFunc(byPK, func(a, b ir.Row) int { return CompareRows(a, b, nil, "id") })
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2), ir.Int(3), ir.Int(4)}, ids(byPK))

	byAge := slices.Clone(rows)
	slices.SortFunc(byAge, func(a, b ir.Row) int {
		return CompareRows(a, b, []OrderBy{{Column: "age"}}, "id")
	})
	assert.Equal(t, []ir.Value{ir.Int(4), ir.Int(2), ir.Int(3), ir.Int(1)}, ids(byAge))

	byAgeDesc := slices.Clone(rows)
	slices.SortFunc(byAgeDesc, func(a, b ir.Row) int {
		return CompareRows(a, b, []OrderBy{{Column: "age", Desc: true}}, "id")
	})
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2), ir.Int(3), ir.Int(4)}, ids(byAgeDesc))
}

func TestOrderColumns(t *testing.T) {
	assert.Equal(t, []string{"id"}, OrderColumns(nil, "id"))
	assert.Equal(t, []string{"name", "id"}, OrderColumns([]OrderBy{{Column: "name"}}, "id"))
}
