package engine

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
	"github.com/roach88/notitia/internal/testutil"
)

func testSchema() *ir.Schema {
	return ir.MustSchema(ir.TableSchema{
		Name: "users",
		Columns: []ir.Column{
			{Name: "id", Kind: ir.KindInt, PrimaryKey: true},
			{Name: "name", Kind: ir.KindText},
			{Name: "email", Kind: ir.KindText, Unique: true},
			{Name: "age", Kind: ir.KindInt, Nullable: true},
		},
	})
}

// newTestDB opens a Database over a fresh FakeAdapter.
func newTestDB(t *testing.T, opts ...Option) (*Database, *testutil.FakeAdapter) {
	t.Helper()
	schema := testSchema()
	fake := testutil.NewFakeAdapter(schema)
	return openTestDB(t, fake, schema, opts...), fake
}

func openTestDB(t *testing.T, adapter store.Adapter, schema *ir.Schema, opts ...Option) *Database {
	t.Helper()
	base := []Option{
		WithIDGenerator(testutil.NewSequentialIDs("sub")),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	db, err := Open(adapter, schema, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func user(id int64, name string, age any) ir.Row {
	return ir.NewRow(
		"id", id,
		"name", name,
		"email", fmt.Sprintf("%s%d@example.com", name, id),
		"age", age,
	)
}

func adults() *queryir.QueryBuilder {
	return queryir.Select("users", "id", "name").Where(queryir.Gte("age", 18))
}

func mustMutate(t *testing.T, db *Database, m queryir.MutationSpec) MutationEvent {
	t.Helper()
	ev, err := db.Mutate(context.Background(), m)
	require.NoError(t, err)
	return ev
}

func mustSubscribe(t *testing.T, db *Database, q queryir.QuerySpec) *Subscription {
	t.Helper()
	sub, err := db.Subscribe(context.Background(), q)
	require.NoError(t, err)
	return sub
}

// requireSignal waits for the next Recv to report a change.
func requireSignal(t *testing.T, sub *Subscription) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.Recv(ctx))
}

func assertNoSignal(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Changes():
		t.Errorf("subscription %s signalled unexpectedly", sub.ID())
	default:
	}
}

// assertConsistent compares the subscription's data with a fresh query.
func assertConsistent(t *testing.T, db *Database, sub *Subscription) {
	t.Helper()
	fresh, err := db.Query(context.Background(), sub.Spec())
	require.NoError(t, err)
	assert.Equal(t, fresh, sub.Data(), "subscription %s diverged from storage", sub.ID())
}

func ids(rs ir.ResultSet) []int64 {
	out := make([]int64, 0, len(rs))
	for _, row := range rs {
		v, _ := row.Get("id")
		out = append(out, int64(v.(ir.Int)))
	}
	return out
}

// keysOnlyAdapter reports affected keys but drops merged update rows, so
// updates to uncached keys need a point lookup.
type keysOnlyAdapter struct {
	*testutil.FakeAdapter
}

func (a keysOnlyAdapter) ExecuteMutation(ctx context.Context, m queryir.MutationSpec) (store.MutationOutcome, error) {
	out, err := a.FakeAdapter.ExecuteMutation(ctx, m)
	out.Rows = nil
	return out, err
}
