package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
)

func fakeSchema() *ir.Schema {
	return ir.MustSchema(ir.TableSchema{
		Name: "users",
		Columns: []ir.Column{
			{Name: "id", Kind: ir.KindInt, PrimaryKey: true},
			{Name: "name", Kind: ir.KindText, Unique: true},
			{Name: "age", Kind: ir.KindInt, Nullable: true},
		},
	})
}

func TestFakeAdapter_QueryMatchesSQLSemantics(t *testing.T) {
	f := NewFakeAdapter(fakeSchema())
	require.NoError(t, f.Seed("users",
		ir.NewRow("id", 3, "name", "cy", "age", 20),
		ir.NewRow("id", 1, "name", "ada", "age", 30),
		ir.NewRow("id", 2, "name", "bo"),
	))
	ctx := context.Background()

	rs, err := f.ExecuteQuery(ctx, queryir.Select("users", "name").Where(queryir.Ne("age", 30)).All())
	require.NoError(t, err)
	// NULL <> 30 is unknown, so bo is filtered out.
	assert.Equal(t, ir.ResultSet{ir.NewRow("name", "cy")}, rs)

	rs, err = f.ExecuteQuery(ctx, queryir.Select("users", "id").OrderBy("age").One())
	require.NoError(t, err)
	assert.Equal(t, ir.ResultSet{ir.NewRow("id", 2), ir.NewRow("id", 3)}, rs)

	assert.Equal(t, 2, f.Queries())
}

func TestFakeAdapter_ForbidRequery(t *testing.T) {
	f := NewFakeAdapter(fakeSchema())
	f.ForbidRequery(1)
	ctx := context.Background()
	q := queryir.Select("users", "id").All()

	_, err := f.ExecuteQuery(ctx, q)
	require.NoError(t, err)
	_, err = f.ExecuteQuery(ctx, q)
	assert.ErrorIs(t, err, ErrUnexpectedRequery)

	f.AllowRequery()
	_, err = f.ExecuteQuery(ctx, q)
	assert.NoError(t, err)
}

func TestFakeAdapter_Mutations(t *testing.T) {
	f := NewFakeAdapter(fakeSchema())
	ctx := context.Background()

	out, err := f.ExecuteMutation(ctx, queryir.Insert("users", ir.NewRow("id", 1, "name", "ada")))
	require.NoError(t, err)
	assert.Equal(t, ir.NewRow("id", 1, "name", "ada", "age", nil), out.Inserted)

	_, err = f.ExecuteMutation(ctx, queryir.Insert("users", ir.NewRow("id", 2, "name", "ada")))
	assert.True(t, store.IsConflict(err))

	out, err = f.ExecuteMutation(ctx, queryir.Update("users").Set("age", 18).Where(queryir.Eq("id", 1)).Build())
	require.NoError(t, err)
	assert.True(t, out.KeysKnown)
	assert.Equal(t, []ir.Value{ir.Int(1)}, out.Keys)
	assert.Equal(t, []ir.Row{ir.NewRow("id", 1, "name", "ada", "age", 18)}, out.Rows)

	f.SetReportKeys(false)
	out, err = f.ExecuteMutation(ctx, queryir.Delete("users", nil))
	require.NoError(t, err)
	assert.False(t, out.KeysKnown)
	assert.Equal(t, 1, out.RowsAffected)
	assert.Empty(t, f.Rows("users"))
	assert.Equal(t, 3, f.Mutations())
}

func TestFakeAdapter_PointLookup(t *testing.T) {
	f := NewFakeAdapter(fakeSchema())
	require.NoError(t, f.Seed("users", ir.NewRow("id", 1, "name", "ada", "age", 17)))
	ctx := context.Background()

	var seen []store.PointLookup
	f.OnLookup(func(l store.PointLookup) { seen = append(seen, l) })

	row, found, err := f.PointLookup(ctx, store.PointLookup{Table: "users", Key: ir.Int(1), Columns: []string{"age"}})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ir.NewRow("age", 17), row)

	_, found, err = f.PointLookup(ctx, store.PointLookup{
		Table: "users", Key: ir.Int(1), Columns: []string{"id"}, Filter: queryir.Gte("age", 18),
	})
	require.NoError(t, err)
	assert.False(t, found)

	boom := errors.New("boom")
	f.FailLookups(boom)
	_, _, err = f.PointLookup(ctx, store.PointLookup{Table: "users", Key: ir.Int(1)})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 3, f.Lookups())
	assert.Len(t, seen, 3)
}

func TestFakeAdapter_FailAll(t *testing.T) {
	f := NewFakeAdapter(fakeSchema())
	f.FailAll(errors.New("gone"))

	_, err := f.ExecuteQuery(context.Background(), queryir.Select("users", "id").All())
	assert.True(t, store.IsConnection(err))

	_, err = f.ExecuteMutation(context.Background(), queryir.Delete("users", nil))
	assert.True(t, store.IsConnection(err))
}
