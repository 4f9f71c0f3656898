package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		conflict   bool
		connection bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true, false},
		{"not null violation", &pgconn.PgError{Code: "23502"}, false, false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, false, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, false, true},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, false, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false, false},
		{"deadline", context.DeadlineExceeded, false, false},
		{"wrapped deadline", fmt.Errorf("acquire: %w", context.DeadlineExceeded), false, false},
		{"canceled", context.Canceled, false, false},
		{"plain", errors.New("boom"), false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("insert", "users", tc.err)
			assert.Equal(t, tc.conflict, store.IsConflict(err))
			assert.Equal(t, tc.connection, store.IsConnection(err))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, store.Schemes(), "postgres")
	assert.Contains(t, store.Schemes(), "postgresql")
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz", testSchema())
	require.Error(t, err)
	assert.True(t, store.IsConnection(err))
}

func testSchema() *ir.Schema {
	return ir.MustSchema(ir.TableSchema{
		Name: "notitia_pgstore_users",
		Columns: []ir.Column{
			{Name: "id", Kind: ir.KindInt, PrimaryKey: true},
			{Name: "name", Kind: ir.KindText, Unique: true},
			{Name: "age", Kind: ir.KindInt, Nullable: true},
			{Name: "active", Kind: ir.KindBool},
		},
	})
}

// TestStore_Postgres runs against a live server when NOTITIA_TEST_POSTGRES
// holds a DSN.
func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("NOTITIA_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("NOTITIA_TEST_POSTGRES not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn, testSchema())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Pool().Exec(ctx, `TRUNCATE "notitia_pgstore_users"`)
	require.NoError(t, err)

	table := "notitia_pgstore_users"
	out, err := s.ExecuteMutation(ctx, queryir.Insert(table, ir.NewRow("id", 1, "name", "ada", "age", 17, "active", true)))
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Int(1)}, out.Keys)

	_, err = s.ExecuteMutation(ctx, queryir.Insert(table, ir.NewRow("id", 2, "name", "ada", "active", false)))
	assert.True(t, store.IsConflict(err))

	out, err = s.ExecuteMutation(ctx, queryir.Update(table).
		Set("age", 18).
		SetExpr("name", queryir.Cat(queryir.Lit("Dr. "), queryir.Col("name"))).
		Where(queryir.Eq("id", 1)).
		Build())
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, ir.NewRow("id", 1, "name", "Dr. ada", "age", 18, "active", true), out.Rows[0])

	rs, err := s.ExecuteQuery(ctx, queryir.Select(table, "name").Where(queryir.Gte("age", 18)).All())
	require.NoError(t, err)
	assert.Equal(t, ir.ResultSet{ir.NewRow("name", "Dr. ada")}, rs)

	row, found, err := s.PointLookup(ctx, store.PointLookup{Table: table, Key: ir.Int(1), Columns: []string{"id", "age"}})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ir.NewRow("id", 1, "age", 18), row)

	out, err = s.ExecuteMutation(ctx, queryir.Delete(table, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowsAffected)
}
