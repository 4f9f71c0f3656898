package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/queryir"
)

// ExecuteMutation applies m and reports the affected keys.
//
// Every statement carries a RETURNING clause, so the SQLite adapter always
// knows its keys:
//   - Insert: the stored row (defaults and normalization applied)
//   - Update: every column of each updated row
//   - Delete: the primary key of each deleted row
//
// Primary-key and unique violations wrap ErrConflict.
func (s *Store) ExecuteMutation(ctx context.Context, m queryir.MutationSpec) (MutationOutcome, error) {
	table, ok := s.schema.Table(m.Table)
	if !ok {
		return MutationOutcome{}, fmt.Errorf("execute mutation: unknown table %q", m.Table)
	}
	query, args, err := s.compiler.CompileMutation(m)
	if err != nil {
		return MutationOutcome{}, fmt.Errorf("execute mutation: %w", err)
	}

	returned := table.Columns
	if m.Kind == queryir.MutationDelete {
		returned = []ir.Column{table.PrimaryKey()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rs ir.ResultSet
	err = s.query(ctx, query, args, func(rows *sql.Rows) error {
		rs, err = ScanRows(rows, returned)
		return err
	})
	if err != nil {
		return MutationOutcome{}, classify(m.Kind.String(), m.Table, err)
	}

	return BuildOutcome(table, m.Kind, rs), nil
}

// BuildOutcome assembles a MutationOutcome from the rows a RETURNING
// clause produced.
func BuildOutcome(table *ir.TableSchema, kind queryir.MutationKind, returned ir.ResultSet) MutationOutcome {
	pk := table.PrimaryKey().Name
	out := MutationOutcome{
		RowsAffected: len(returned),
		KeysKnown:    true,
		Keys:         make([]ir.Value, 0, len(returned)),
	}
	for _, row := range returned {
		key, _ := row.Get(pk)
		out.Keys = append(out.Keys, key)
	}

	switch kind {
	case queryir.MutationInsert:
		if len(returned) > 0 {
			out.Inserted = returned[0]
		}
	case queryir.MutationUpdate:
		out.Rows = returned
	}
	return out
}
