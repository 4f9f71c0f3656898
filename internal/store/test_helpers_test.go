package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/notitia/internal/ir"
)

func testSchema() *ir.Schema {
	return ir.MustSchema(
		ir.TableSchema{
			Name: "users",
			Columns: []ir.Column{
				{Name: "id", Kind: ir.KindInt, PrimaryKey: true},
				{Name: "email", Kind: ir.KindText, Unique: true},
				{Name: "name", Kind: ir.KindText},
				{Name: "age", Kind: ir.KindInt, Nullable: true},
				{Name: "score", Kind: ir.KindReal, Nullable: true},
				{Name: "active", Kind: ir.KindBool},
				{Name: "avatar", Kind: ir.KindBlob, Nullable: true},
			},
		},
	)
}

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testSchema())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func userRow(id int64, name string, age any) ir.Row {
	return ir.NewRow(
		"id", id,
		"email", fmt.Sprintf("%s@example.com", name),
		"name", name,
		"age", age,
		"active", true,
	)
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
