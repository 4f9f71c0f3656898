package querysql

import (
	"strings"

	"github.com/roach88/notitia/internal/ir"
)

// CreateTable renders an idempotent CREATE TABLE statement for t.
//
// Example (SQLite):
//
//	CREATE TABLE IF NOT EXISTS "users" (
//	    "id" INTEGER PRIMARY KEY,
//	    "email" TEXT NOT NULL UNIQUE,
//	    "age" INTEGER,
//	    "team" TEXT REFERENCES "teams" ("slug")
//	)
//
// References carry no ON DELETE or ON UPDATE action.
func CreateTable(t *ir.TableSchema, d Dialect) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdent(t.Name))
	b.WriteString(" (\n")
	for i, col := range t.Columns {
		b.WriteString("    ")
		b.WriteString(quoteIdent(col.Name))
		b.WriteString(" ")
		b.WriteString(columnType(col.Kind, d))
		switch {
		case col.PrimaryKey:
			b.WriteString(" PRIMARY KEY")
		case !col.Nullable:
			b.WriteString(" NOT NULL")
		}
		if col.Unique && !col.PrimaryKey {
			b.WriteString(" UNIQUE")
		}
		if ref := col.References; ref != nil {
			b.WriteString(" REFERENCES ")
			b.WriteString(quoteIdent(ref.Table))
			b.WriteString(" (")
			b.WriteString(quoteIdent(ref.Column))
			b.WriteString(")")
		}
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// CreateSchema renders CreateTable for every table, in registration order.
func CreateSchema(s *ir.Schema, d Dialect) []string {
	tables := s.Tables()
	stmts := make([]string, len(tables))
	for i, t := range tables {
		stmts[i] = CreateTable(t, d)
	}
	return stmts
}

func columnType(k ir.Kind, d Dialect) string {
	switch k {
	case ir.KindInt:
		if d == Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case ir.KindReal:
		if d == Postgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case ir.KindBool:
		return "BOOLEAN"
	case ir.KindBlob:
		if d == Postgres {
			return "BYTEA"
		}
		return "BLOB"
	default:
		return "TEXT"
	}
}
